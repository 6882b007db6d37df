package fakebackend

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// dataset holds the business records. Records are JSON objects so handlers
// can echo exactly what clients send.
type dataset struct {
	mu        sync.Mutex
	reference map[string][]map[string]any
	contracts map[string]map[string]any
	order     []string
	nextNum   int
}

func newDataset() *dataset {
	return &dataset{
		reference: make(map[string][]map[string]any),
		contracts: make(map[string]map[string]any),
	}
}

const (
	kindCounterparties  = "counterparties"
	kindCommodities     = "commodities"
	kindTraders         = "traders"
	kindCurrencies      = "currencies"
	kindCostCenters     = "cost-centers"
	kindSociedades      = "sociedades"
	kindCommodityGroups = "commodity-groups"
	kindCommodityTypes  = "commodity-types"
	kindExchangeRates   = "exchange-rates"
	kindAmendments      = "contract-amendments"
)

func (d *dataset) add(kind string, rec map[string]any) map[string]any {
	now := time.Now().UTC().Format(time.RFC3339)
	rec["id"] = int64(len(d.reference[kind]) + 1)
	if _, ok := rec["is_active"]; !ok && kind != kindExchangeRates && kind != kindAmendments {
		rec["is_active"] = true
	}
	rec["created_at"] = now
	if kind != kindExchangeRates && kind != kindAmendments {
		rec["updated_at"] = now
	}
	d.reference[kind] = append(d.reference[kind], rec)
	return rec
}

func (d *dataset) seed() {
	d.mu.Lock()
	defer d.mu.Unlock()

	usd := d.add(kindCurrencies, map[string]any{"currency_code": "USD", "currency_name": "US Dollar", "currency_symbol": "$", "is_base_currency": true, "decimal_places": 2})
	eur := d.add(kindCurrencies, map[string]any{"currency_code": "EUR", "currency_name": "Euro", "currency_symbol": "€", "is_base_currency": false, "decimal_places": 2})
	d.add(kindExchangeRates, map[string]any{"from_currency": eur["id"], "to_currency": usd["id"], "rate": "1.085000", "rate_date": "2026-10-01", "source": "ECB"})

	cc := d.add(kindCostCenters, map[string]any{"cost_center_name": "Grains Desk", "description": "Physical grains trading"})
	soc := d.add(kindSociedades, map[string]any{"sociedad_name": "NextCRM Trading SA", "tax_id": "A12345678", "city": "Geneva", "country": "CH"})

	grains := d.add(kindCommodityGroups, map[string]any{"commodity_group_name": "Grains", "sort_order": 1})
	d.add(kindCommodityGroups, map[string]any{"commodity_group_name": "Oilseeds", "sort_order": 2})
	physical := d.add(kindCommodityTypes, map[string]any{"commodity_type_name": "Physical", "sort_order": 1})

	wheat := d.add(kindCommodities, map[string]any{
		"commodity_name_short": "Wheat", "commodity_name_full": "Hard Red Winter Wheat",
		"commodity_group": grains["id"], "commodity_group_name": "Grains",
		"commodity_type": physical["id"], "commodity_type_name": "Physical",
		"commodity_code": "HRW", "default_unit": "MT",
	})
	corn := d.add(kindCommodities, map[string]any{
		"commodity_name_short": "Corn", "commodity_name_full": "Yellow Corn No. 2",
		"commodity_group": grains["id"], "commodity_group_name": "Grains",
		"commodity_type": physical["id"], "commodity_type_name": "Physical",
		"commodity_code": "YC2", "default_unit": "MT",
	})

	trader := d.add(kindTraders, map[string]any{"trader_name": "Ana Trader", "email": "trader1@nextcrm.test", "employee_id": "T-001", "department": "Grains"})

	acme := d.add(kindCounterparties, map[string]any{
		"counterparty_name": "Acme Grain Co", "counterparty_code": "ACME", "city": "Kansas City", "country": "US",
		"counterparty_type": "supplier", "credit_rating": "A", "credit_limit": "5000000.00",
	})
	delta := d.add(kindCounterparties, map[string]any{
		"counterparty_name": "Delta Mills", "counterparty_code": "DELTA", "city": "Rotterdam", "country": "NL",
		"counterparty_type": "customer", "credit_rating": "BBB", "credit_limit": "2000000.00",
	})

	base := map[string]any{
		"trader": trader["id"], "trader_name": trader["trader_name"],
		"cost_center": cc["id"], "cost_center_name": cc["cost_center_name"],
		"sociedad": soc["id"], "sociedad_name": soc["sociedad_name"],
		"trade_currency": usd["id"], "currency_code": "USD",
		"unit_of_measure": "MT", "delivery_terms": "FOB",
	}
	d.addContract(base, acme, wheat, "5000", "245.50", "draft", "2026-11-15")
	d.addContract(base, delta, corn, "12000", "198.25", "pending_approval", "2026-12-01")
	d.addContract(base, acme, corn, "8000", "201.00", "approved", "2026-11-20")
}

func (d *dataset) addContract(base, cp, commodity map[string]any, qty, price, status, delivery string) map[string]any {
	d.nextNum++
	rec := copyObject(base)
	q, _ := strconv.ParseFloat(qty, 64)
	p, _ := strconv.ParseFloat(price, 64)
	now := time.Now().UTC().Format(time.RFC3339)
	rec["id"] = uuid.NewString()
	rec["contract_number"] = fmt.Sprintf("CTR-%d-%04d", time.Now().Year(), d.nextNum)
	rec["counterparty"] = cp["id"]
	rec["counterparty_name"] = cp["counterparty_name"]
	rec["commodity"] = commodity["id"]
	rec["commodity_name"] = commodity["commodity_name_short"]
	rec["commodity_group_name"] = commodity["commodity_group_name"]
	rec["quantity"] = qty
	rec["price"] = price
	rec["total_value"] = strconv.FormatFloat(q*p, 'f', 2, 64)
	rec["status"] = status
	rec["contract_date"] = time.Now().UTC().Format("2006-01-02")
	rec["delivery_period_start"] = delivery
	rec["delivery_period_end"] = delivery
	rec["notes"] = ""
	rec["created_at"] = now
	rec["updated_at"] = now
	id := rec["id"].(string)
	d.contracts[id] = rec
	d.order = append(d.order, id)
	return rec
}

/*
====================================
ROUTES
====================================
*/

func (b *Backend) crmRoutes(mux *http.ServeMux) {
	const prefix = "/api/nextcrm/"

	mux.HandleFunc("GET "+prefix+"contracts/", b.authed(b.handleContractList))
	mux.HandleFunc("POST "+prefix+"contracts/", b.authed(b.handleContractCreate))
	mux.HandleFunc("GET "+prefix+"contracts/dashboard_stats/", b.authed(b.handleDashboard))
	mux.HandleFunc("GET "+prefix+"contracts/{id}/", b.authed(b.handleContractGet))
	mux.HandleFunc("PUT "+prefix+"contracts/{id}/", b.authed(b.handleContractUpdate))
	mux.HandleFunc("PATCH "+prefix+"contracts/{id}/", b.authed(b.handleContractUpdate))
	mux.HandleFunc("DELETE "+prefix+"contracts/{id}/", b.authed(b.handleContractDelete))
	mux.HandleFunc("POST "+prefix+"contracts/{id}/approve/", b.authed(b.handleContractApprove))
	mux.HandleFunc("POST "+prefix+"contracts/{id}/cancel/", b.authed(b.handleContractCancel))
	mux.HandleFunc("GET "+prefix+"search/", b.authed(b.handleSearch))

	for _, kind := range []string{
		kindCounterparties, kindCommodities, kindTraders, kindCurrencies, kindCostCenters,
		kindSociedades, kindCommodityGroups, kindCommodityTypes, kindExchangeRates, kindAmendments,
	} {
		mux.HandleFunc("GET "+prefix+kind+"/", b.authed(b.handleReferenceList(kind)))
		mux.HandleFunc("GET "+prefix+kind+"/{id}/", b.authed(b.handleReferenceGet(kind)))
	}
	mux.HandleFunc("POST "+prefix+kindCounterparties+"/", b.authed(b.handleCounterpartyCreate))
	mux.HandleFunc("PUT "+prefix+kindCounterparties+"/{id}/", b.authed(b.handleCounterpartyUpdate))
	mux.HandleFunc("PATCH "+prefix+kindCounterparties+"/{id}/", b.authed(b.handleCounterpartyUpdate))
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

// paginate renders a DRF page. Links are relative to the request.
func (b *Backend) paginate(w http.ResponseWriter, r *http.Request, items []map[string]any) {
	q := r.URL.Query()
	size := b.cfg.PageSize
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil && v > 0 {
		size = v
	}
	page := 1
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}
	start := (page - 1) * size
	if start > len(items) && len(items) > 0 {
		notFound(w)
		return
	}
	end := min(start+size, len(items))
	link := func(p int) any {
		if p < 1 || (p-1)*size >= len(items) {
			return nil
		}
		v := url.Values{}
		for k, vals := range q {
			v[k] = vals
		}
		v.Set("page", strconv.Itoa(p))
		return r.URL.Path + "?" + v.Encode()
	}
	results := items[min(start, len(items)):end]
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(items),
		"next":     link(page + 1),
		"previous": link(page - 1),
		"results":  results,
	})
}

/*
====================================
CONTRACTS
====================================
*/

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatInt(int64(t), 10)
	}
	return fmt.Sprint(v)
}

func (b *Backend) handleContractList(w http.ResponseWriter, r *http.Request, _ *user) {
	q := r.URL.Query()
	d := b.data
	d.mu.Lock()
	var out []map[string]any
	for _, id := range d.order {
		c := d.contracts[id]
		if s := q.Get("status"); s != "" && c["status"] != s {
			continue
		}
		if t := q.Get("trader"); t != "" && idString(c["trader"]) != t {
			continue
		}
		if cp := q.Get("counterparty"); cp != "" && idString(c["counterparty"]) != cp {
			continue
		}
		if s := strings.ToLower(q.Get("search")); s != "" &&
			!strings.Contains(strings.ToLower(c["contract_number"].(string)), s) &&
			!strings.Contains(strings.ToLower(fmt.Sprint(c["counterparty_name"])), s) {
			continue
		}
		out = append(out, copyObject(c))
	}
	d.mu.Unlock()
	b.paginate(w, r, out)
}

func (b *Backend) handleContractGet(w http.ResponseWriter, r *http.Request, _ *user) {
	d := b.data
	d.mu.Lock()
	c, ok := d.contracts[r.PathValue("id")]
	if ok {
		c = copyObject(c)
	}
	d.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

var contractRequired = []string{"trader", "counterparty", "commodity", "quantity", "price", "trade_currency", "delivery_terms", "contract_date", "delivery_period_start", "delivery_period_end"}

func (b *Backend) handleContractCreate(w http.ResponseWriter, r *http.Request, u *user) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	errs := map[string][]string{}
	for _, k := range contractRequired {
		if v, ok := body[k]; !ok || v == nil || v == "" || v == float64(0) {
			errs[k] = []string{"This field is required."}
		}
	}
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	d := b.data
	d.mu.Lock()
	cp := d.find(kindCounterparties, body["counterparty"])
	commodity := d.find(kindCommodities, body["commodity"])
	if cp == nil || commodity == nil {
		d.mu.Unlock()
		writeFieldErrors(w, map[string][]string{"counterparty": {"Invalid pk - object does not exist."}})
		return
	}
	base := copyObject(body)
	base["created_by"] = u.id
	rec := d.addContract(base, cp, commodity, fmt.Sprint(body["quantity"]), fmt.Sprint(body["price"]), "draft", fmt.Sprint(body["delivery_period_start"]))
	rec["delivery_period_end"] = body["delivery_period_end"]
	rec["contract_date"] = body["contract_date"]
	out := copyObject(rec)
	d.mu.Unlock()
	writeJSON(w, http.StatusCreated, out)
}

var contractReadOnly = map[string]bool{"id": true, "contract_number": true, "status": true, "total_value": true, "created_at": true, "approval_date": true}

func (b *Backend) handleContractUpdate(w http.ResponseWriter, r *http.Request, _ *user) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	d := b.data
	d.mu.Lock()
	c, ok := d.contracts[r.PathValue("id")]
	if !ok {
		d.mu.Unlock()
		notFound(w)
		return
	}
	for k, v := range body {
		if !contractReadOnly[k] {
			c[k] = v
		}
	}
	q, _ := strconv.ParseFloat(fmt.Sprint(c["quantity"]), 64)
	p, _ := strconv.ParseFloat(fmt.Sprint(c["price"]), 64)
	c["total_value"] = strconv.FormatFloat(q*p, 'f', 2, 64)
	c["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	out := copyObject(c)
	d.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleContractDelete(w http.ResponseWriter, r *http.Request, _ *user) {
	d := b.data
	id := r.PathValue("id")
	d.mu.Lock()
	_, ok := d.contracts[id]
	if ok {
		delete(d.contracts, id)
		for i, v := range d.order {
			if v == id {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	}
	d.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleContractApprove(w http.ResponseWriter, r *http.Request, u *user) {
	d := b.data
	d.mu.Lock()
	c, ok := d.contracts[r.PathValue("id")]
	if !ok {
		d.mu.Unlock()
		notFound(w)
		return
	}
	if c["status"] != "draft" && c["status"] != "pending_approval" {
		d.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Only draft or pending approval contracts can be approved", "")
		return
	}
	c["status"] = "approved"
	c["approval_date"] = time.Now().UTC().Format(time.RFC3339)
	c["approved_by"] = u.id
	c["approved_by_username"] = u.username
	d.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Contract approved successfully"})
}

func (b *Backend) handleContractCancel(w http.ResponseWriter, r *http.Request, _ *user) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = decodeBody(r, &body)

	d := b.data
	d.mu.Lock()
	c, ok := d.contracts[r.PathValue("id")]
	if !ok {
		d.mu.Unlock()
		notFound(w)
		return
	}
	if c["status"] == "completed" || c["status"] == "cancelled" {
		d.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Cannot cancel completed or already cancelled contracts", "")
		return
	}
	c["status"] = "cancelled"
	if body.Reason != "" {
		c["notes"] = strings.TrimSpace(fmt.Sprint(c["notes"]) + "\n\nCancelled: " + body.Reason)
	}
	d.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Contract cancelled successfully"})
}

func (b *Backend) handleDashboard(w http.ResponseWriter, _ *http.Request, _ *user) {
	d := b.data
	d.mu.Lock()
	defer d.mu.Unlock()

	var total, active, completed int
	var value float64
	byStatus := map[string]int{}
	for _, c := range d.contracts {
		total++
		status := fmt.Sprint(c["status"])
		byStatus[status]++
		switch status {
		case "approved", "executed", "partially_executed":
			active++
		case "completed":
			completed++
		}
		v, _ := strconv.ParseFloat(fmt.Sprint(c["total_value"]), 64)
		value += v
	}
	dist := map[string]any{}
	for s, n := range byStatus {
		dist[s] = map[string]any{"count": n, "percentage": float64(n) * 100 / float64(total)}
	}
	activeCounterparties := 0
	for _, cp := range d.reference[kindCounterparties] {
		if cp["is_active"] == true {
			activeCounterparties++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_contracts":      total,
		"active_contracts":     active,
		"completed_contracts":  completed,
		"total_value":          value,
		"total_counterparties": activeCounterparties,
		"overdue_contracts":    0,
		"monthly_contracts":    []any{},
		"monthly_revenue":      []any{},
		"status_distribution":  dist,
		"top_commodities":      []any{},
		"top_counterparties":   []any{},
		"upcoming_deliveries":  []any{},
	})
}

func (b *Backend) handleSearch(w http.ResponseWriter, r *http.Request, _ *user) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < 2 {
		writeError(w, http.StatusBadRequest, "Query must be at least 2 characters", "")
		return
	}
	needle := strings.ToLower(q)
	has := func(rec map[string]any, keys ...string) bool {
		for _, k := range keys {
			if strings.Contains(strings.ToLower(fmt.Sprint(rec[k])), needle) {
				return true
			}
		}
		return false
	}
	pick := func(rec map[string]any, keys ...string) map[string]any {
		out := map[string]any{"id": rec["id"]}
		for _, k := range keys {
			out[k] = rec[k]
		}
		return out
	}

	d := b.data
	d.mu.Lock()
	defer d.mu.Unlock()
	res := map[string][]map[string]any{
		"contracts":      {},
		"counterparties": {},
		"commodities":    {},
		"traders":        {},
	}
	for _, id := range d.order {
		c := d.contracts[id]
		if len(res["contracts"]) < 5 && has(c, "contract_number", "counterparty_name", "commodity_name") {
			out := pick(c, "contract_number", "counterparty_name", "status")
			out["commodity_name"] = c["commodity_name"]
			v, _ := strconv.ParseFloat(fmt.Sprint(c["total_value"]), 64)
			out["total_value"] = v
			res["contracts"] = append(res["contracts"], out)
		}
	}
	for _, cp := range d.reference[kindCounterparties] {
		if len(res["counterparties"]) < 5 && has(cp, "counterparty_name", "counterparty_code") {
			res["counterparties"] = append(res["counterparties"], pick(cp, "counterparty_name", "counterparty_type", "city", "country"))
		}
	}
	for _, cm := range d.reference[kindCommodities] {
		if len(res["commodities"]) < 5 && has(cm, "commodity_name_short", "commodity_name_full") {
			out := pick(cm, "commodity_name_short", "commodity_name_full")
			out["commodity_group"] = cm["commodity_group_name"]
			res["commodities"] = append(res["commodities"], out)
		}
	}
	for _, t := range d.reference[kindTraders] {
		if len(res["traders"]) < 5 && has(t, "trader_name", "email") {
			res["traders"] = append(res["traders"], pick(t, "trader_name", "email", "department"))
		}
	}
	writeJSON(w, http.StatusOK, res)
}

/*
====================================
REFERENCE DATA
====================================
*/

func (d *dataset) find(kind string, id any) map[string]any {
	want := idString(id)
	for _, rec := range d.reference[kind] {
		if idString(rec["id"]) == want {
			return rec
		}
	}
	return nil
}

func (b *Backend) handleReferenceList(kind string) func(http.ResponseWriter, *http.Request, *user) {
	return func(w http.ResponseWriter, r *http.Request, _ *user) {
		q := r.URL.Query()
		search := strings.ToLower(q.Get("search"))
		d := b.data
		d.mu.Lock()
		var out []map[string]any
		for _, rec := range d.reference[kind] {
			if v := q.Get("is_active"); v != "" && fmt.Sprint(rec["is_active"]) != v {
				continue
			}
			if v := q.Get("contract"); v != "" && idString(rec["contract"]) != v {
				continue
			}
			if search != "" && !matchesAny(rec, search) {
				continue
			}
			out = append(out, copyObject(rec))
		}
		d.mu.Unlock()
		b.paginate(w, r, out)
	}
}

func matchesAny(rec map[string]any, needle string) bool {
	for _, v := range rec {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func (b *Backend) handleReferenceGet(kind string) func(http.ResponseWriter, *http.Request, *user) {
	return func(w http.ResponseWriter, r *http.Request, _ *user) {
		d := b.data
		d.mu.Lock()
		rec := d.find(kind, r.PathValue("id"))
		if rec != nil {
			rec = copyObject(rec)
		}
		d.mu.Unlock()
		if rec == nil {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (b *Backend) handleCounterpartyCreate(w http.ResponseWriter, r *http.Request, _ *user) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	errs := map[string][]string{}
	for _, k := range []string{"counterparty_name", "counterparty_code", "counterparty_type"} {
		if v, _ := body[k].(string); strings.TrimSpace(v) == "" {
			errs[k] = []string{"This field is required."}
		}
	}
	d := b.data
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cp := range d.reference[kindCounterparties] {
		if cp["counterparty_code"] == body["counterparty_code"] {
			errs["counterparty_code"] = []string{"counterparty with this counterparty code already exists."}
		}
	}
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	rec := d.add(kindCounterparties, body)
	writeJSON(w, http.StatusCreated, copyObject(rec))
}

func (b *Backend) handleCounterpartyUpdate(w http.ResponseWriter, r *http.Request, _ *user) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	d := b.data
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := d.find(kindCounterparties, r.PathValue("id"))
	if rec == nil {
		notFound(w)
		return
	}
	for k, v := range body {
		if k != "id" && k != "created_at" {
			rec[k] = v
		}
	}
	rec["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, copyObject(rec))
}
