package nextcrm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/MrEthical07/nextcrm/session"
)

type (
	UserProfile      = session.UserProfile
	LoginCredentials = session.LoginCredentials
	RegisterData     = session.RegisterData
	ProfileUpdate    = session.ProfileUpdate
	SessionState     = session.State
)

// Amount is a decimal as the API sends it. The backend encodes decimals as
// JSON strings; computed totals sometimes arrive as numbers. Both decode.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}

// Float parses the amount. An empty amount is zero.
func (a Amount) Float() (float64, error) {
	if a == "" {
		return 0, nil
	}
	return strconv.ParseFloat(string(a), 64)
}

// AmountOf formats f with the given decimal places.
func AmountOf(f float64, places int) Amount {
	return Amount(strconv.FormatFloat(f, 'f', places, 64))
}

// Page is one page of a paginated list.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type rawPage[T any] Page[T]

// UnmarshalJSON also accepts a bare array, which unpaginated endpoints
// return.
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var results []T
		if err := json.Unmarshal(data, &results); err != nil {
			return err
		}
		*p = Page[T]{Count: len(results), Results: results}
		return nil
	}
	var out rawPage[T]
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*p = Page[T](out)
	return nil
}

// HasNext reports whether another page exists.
func (p *Page[T]) HasNext() bool {
	return p != nil && p.Next != nil && *p.Next != ""
}

// Contract statuses.
const (
	ContractDraft             = "draft"
	ContractPendingApproval   = "pending_approval"
	ContractApproved          = "approved"
	ContractExecuted          = "executed"
	ContractPartiallyExecuted = "partially_executed"
	ContractCompleted         = "completed"
	ContractCancelled         = "cancelled"
	ContractExpired           = "expired"
)

type CostCenter struct {
	ID             int64     `json:"id"`
	CostCenterName string    `json:"cost_center_name"`
	Description    string    `json:"description"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Sociedad struct {
	ID           int64     `json:"id"`
	SociedadName string    `json:"sociedad_name"`
	TaxID        string    `json:"tax_id"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	Country      string    `json:"country"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Trader struct {
	ID         int64     `json:"id"`
	TraderName string    `json:"trader_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	EmployeeID string    `json:"employee_id"`
	Department string    `json:"department"`
	HireDate   *string   `json:"hire_date"`
	IsActive   bool      `json:"is_active"`
	User       *int64    `json:"user"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CommodityGroup struct {
	ID                 int64     `json:"id"`
	CommodityGroupName string    `json:"commodity_group_name"`
	Description        string    `json:"description"`
	SortOrder          int       `json:"sort_order"`
	IsActive           bool      `json:"is_active"`
	CommoditiesCount   int       `json:"commodities_count,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type CommodityType struct {
	ID                int64     `json:"id"`
	CommodityTypeName string    `json:"commodity_type_name"`
	Description       string    `json:"description"`
	SortOrder         int       `json:"sort_order"`
	IsActive          bool      `json:"is_active"`
	CommoditiesCount  int       `json:"commodities_count,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Commodity struct {
	ID                    int64     `json:"id"`
	CommodityNameShort    string    `json:"commodity_name_short"`
	CommodityNameFull     string    `json:"commodity_name_full"`
	CommodityGroup        int64     `json:"commodity_group"`
	CommodityGroupName    string    `json:"commodity_group_name,omitempty"`
	CommodityType         int64     `json:"commodity_type"`
	CommodityTypeName     string    `json:"commodity_type_name,omitempty"`
	CommodityCode         string    `json:"commodity_code"`
	DefaultUnit           string    `json:"default_unit"`
	QualitySpecifications string    `json:"quality_specifications"`
	IsActive              bool      `json:"is_active"`
	ActiveContractsCount  int       `json:"active_contracts_count,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Counterparty types.
const (
	CounterpartySupplier = "supplier"
	CounterpartyCustomer = "customer"
	CounterpartyBoth     = "both"
)

type Counterparty struct {
	ID                  int64     `json:"id"`
	CounterpartyName    string    `json:"counterparty_name"`
	CounterpartyCode    string    `json:"counterparty_code"`
	TaxID               string    `json:"tax_id"`
	Address             string    `json:"address"`
	City                string    `json:"city"`
	StateProvince       string    `json:"state_province"`
	PostalCode          string    `json:"postal_code"`
	Country             string    `json:"country"`
	Phone               string    `json:"phone"`
	Email               string    `json:"email"`
	Website             string    `json:"website"`
	CounterpartyType    string    `json:"counterparty_type"`
	CreditRating        string    `json:"credit_rating"`
	CreditLimit         Amount    `json:"credit_limit"`
	PaymentTerms        string    `json:"payment_terms"`
	PrimaryContactName  string    `json:"primary_contact_name"`
	PrimaryContactEmail string    `json:"primary_contact_email"`
	PrimaryContactPhone string    `json:"primary_contact_phone"`
	IsActive            bool      `json:"is_active"`
	IsBlacklisted       bool      `json:"is_blacklisted"`
	BlacklistReason     string    `json:"blacklist_reason"`
	Notes               string    `json:"notes"`
	ContractsCount      int       `json:"contracts_count,omitempty"`
	TotalContractValue  Amount    `json:"total_contract_value,omitempty"`
	LastContractDate    string    `json:"last_contract_date,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// CounterpartyInput is the writable subset of Counterparty.
type CounterpartyInput struct {
	CounterpartyName    string `json:"counterparty_name,omitempty"`
	CounterpartyCode    string `json:"counterparty_code,omitempty"`
	TaxID               string `json:"tax_id,omitempty"`
	Address             string `json:"address,omitempty"`
	City                string `json:"city,omitempty"`
	StateProvince       string `json:"state_province,omitempty"`
	PostalCode          string `json:"postal_code,omitempty"`
	Country             string `json:"country,omitempty"`
	Phone               string `json:"phone,omitempty"`
	Email               string `json:"email,omitempty"`
	Website             string `json:"website,omitempty"`
	CounterpartyType    string `json:"counterparty_type,omitempty"`
	CreditRating        string `json:"credit_rating,omitempty"`
	CreditLimit         Amount `json:"credit_limit,omitempty"`
	PaymentTerms        string `json:"payment_terms,omitempty"`
	PrimaryContactName  string `json:"primary_contact_name,omitempty"`
	PrimaryContactEmail string `json:"primary_contact_email,omitempty"`
	PrimaryContactPhone string `json:"primary_contact_phone,omitempty"`
	IsActive            *bool  `json:"is_active,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

type Currency struct {
	ID             int64     `json:"id"`
	CurrencyCode   string    `json:"currency_code"`
	CurrencyName   string    `json:"currency_name"`
	CurrencySymbol string    `json:"currency_symbol"`
	IsBaseCurrency bool      `json:"is_base_currency"`
	IsActive       bool      `json:"is_active"`
	DecimalPlaces  int       `json:"decimal_places"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ExchangeRate struct {
	ID           int64     `json:"id"`
	FromCurrency int64     `json:"from_currency"`
	ToCurrency   int64     `json:"to_currency"`
	Rate         Amount    `json:"rate"`
	RateDate     string    `json:"rate_date"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}

type Contract struct {
	ID                 string `json:"id"`
	ContractNumber     string `json:"contract_number"`
	Trader             int64  `json:"trader"`
	TraderName         string `json:"trader_name,omitempty"`
	Counterparty       int64  `json:"counterparty"`
	CounterpartyName   string `json:"counterparty_name,omitempty"`
	Commodity          int64  `json:"commodity"`
	CommodityName      string `json:"commodity_name,omitempty"`
	CommodityGroupName string `json:"commodity_group_name,omitempty"`
	CostCenter         *int64 `json:"cost_center"`
	CostCenterName     string `json:"cost_center_name,omitempty"`
	Sociedad           *int64 `json:"sociedad"`
	SociedadName       string `json:"sociedad_name,omitempty"`

	Quantity        Amount `json:"quantity"`
	UnitOfMeasure   string `json:"unit_of_measure"`
	Price           Amount `json:"price"`
	TradeCurrency   int64  `json:"trade_currency"`
	CurrencyCode    string `json:"currency_code,omitempty"`
	PriceBasis      string `json:"price_basis"`
	PremiumDiscount Amount `json:"premium_discount"`
	TotalValue      Amount `json:"total_value"`

	DeliveryTerms    string `json:"delivery_terms"`
	DeliveryLocation string `json:"delivery_location"`
	LoadingPort      string `json:"loading_port"`
	DischargePort    string `json:"discharge_port"`

	ContractDate        string  `json:"contract_date"`
	DeliveryPeriodStart string  `json:"delivery_period_start"`
	DeliveryPeriodEnd   string  `json:"delivery_period_end"`
	ShipmentPeriodStart *string `json:"shipment_period_start"`
	ShipmentPeriodEnd   *string `json:"shipment_period_end"`

	Status             string     `json:"status"`
	ApprovalDate       *time.Time `json:"approval_date"`
	ApprovedBy         *int64     `json:"approved_by"`
	ApprovedByUsername string     `json:"approved_by_username,omitempty"`

	QualitySpecifications string `json:"quality_specifications"`
	InspectionTerms       string `json:"inspection_terms"`

	HedgeRequired   bool   `json:"hedge_required"`
	HedgePercentage Amount `json:"hedge_percentage"`

	PaymentTerms       string `json:"payment_terms"`
	ForceMajeureClause string `json:"force_majeure_clause"`
	SpecialConditions  string `json:"special_conditions"`
	Notes              string `json:"notes"`

	InternalReference string `json:"internal_reference"`
	ProfitCenter      string `json:"profit_center"`

	DaysToDelivery       *int    `json:"days_to_delivery"`
	IsOverdue            bool    `json:"is_overdue"`
	CompletionPercentage float64 `json:"completion_percentage"`

	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	CreatedBy         *int64    `json:"created_by"`
	CreatedByUsername string    `json:"created_by_username,omitempty"`
	UpdatedBy         *int64    `json:"updated_by"`
	UpdatedByUsername string    `json:"updated_by_username,omitempty"`

	Amendments []ContractAmendment `json:"amendments,omitempty"`
}

type ContractAmendment struct {
	ID                  int64          `json:"id"`
	Contract            string         `json:"contract"`
	AmendmentNumber     string         `json:"amendment_number"`
	AmendmentType       string         `json:"amendment_type"`
	Description         string         `json:"description"`
	OldValues           map[string]any `json:"old_values"`
	NewValues           map[string]any `json:"new_values"`
	RequestedBy         int64          `json:"requested_by"`
	RequestedByUsername string         `json:"requested_by_username,omitempty"`
	ApprovedBy          *int64         `json:"approved_by"`
	ApprovedByUsername  string         `json:"approved_by_username,omitempty"`
	ApprovalDate        *time.Time     `json:"approval_date"`
	CreatedAt           time.Time      `json:"created_at"`
}

// ContractInput is the contract form. Required fields are plain values;
// everything else is omitted when empty.
type ContractInput struct {
	Trader                int64  `json:"trader"`
	Counterparty          int64  `json:"counterparty"`
	Commodity             int64  `json:"commodity"`
	CostCenter            *int64 `json:"cost_center,omitempty"`
	Sociedad              *int64 `json:"sociedad,omitempty"`
	Quantity              Amount `json:"quantity"`
	UnitOfMeasure         string `json:"unit_of_measure"`
	Price                 Amount `json:"price"`
	TradeCurrency         int64  `json:"trade_currency"`
	PriceBasis            string `json:"price_basis,omitempty"`
	PremiumDiscount       Amount `json:"premium_discount,omitempty"`
	DeliveryTerms         string `json:"delivery_terms"`
	DeliveryLocation      string `json:"delivery_location,omitempty"`
	LoadingPort           string `json:"loading_port,omitempty"`
	DischargePort         string `json:"discharge_port,omitempty"`
	ContractDate          string `json:"contract_date"`
	DeliveryPeriodStart   string `json:"delivery_period_start"`
	DeliveryPeriodEnd     string `json:"delivery_period_end"`
	ShipmentPeriodStart   string `json:"shipment_period_start,omitempty"`
	ShipmentPeriodEnd     string `json:"shipment_period_end,omitempty"`
	QualitySpecifications string `json:"quality_specifications,omitempty"`
	InspectionTerms       string `json:"inspection_terms,omitempty"`
	HedgeRequired         *bool  `json:"hedge_required,omitempty"`
	HedgePercentage       Amount `json:"hedge_percentage,omitempty"`
	PaymentTerms          string `json:"payment_terms,omitempty"`
	ForceMajeureClause    string `json:"force_majeure_clause,omitempty"`
	SpecialConditions     string `json:"special_conditions,omitempty"`
	Notes                 string `json:"notes,omitempty"`
	InternalReference     string `json:"internal_reference,omitempty"`
	ProfitCenter          string `json:"profit_center,omitempty"`
}

// ContractFilters narrows ListContracts. Zero fields are not sent.
type ContractFilters struct {
	Status             string
	Trader             int64
	Counterparty       int64
	CommodityGroup     int64
	ContractDateAfter  string
	ContractDateBefore string
	Search             string
	Ordering           string
	Page               int
	PageSize           int
}

// Values encodes the non-empty filters as query parameters.
func (f ContractFilters) Values() url.Values {
	v := url.Values{}
	setString := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	setInt := func(key string, val int64) {
		if val != 0 {
			v.Set(key, strconv.FormatInt(val, 10))
		}
	}
	setString("status", f.Status)
	setInt("trader", f.Trader)
	setInt("counterparty", f.Counterparty)
	setInt("commodity_group", f.CommodityGroup)
	setString("contract_date_after", f.ContractDateAfter)
	setString("contract_date_before", f.ContractDateBefore)
	setString("search", f.Search)
	setString("ordering", f.Ordering)
	setInt("page", int64(f.Page))
	setInt("page_size", int64(f.PageSize))
	return v
}

// ListParams is the generic filter set accepted by the reference-data lists.
type ListParams struct {
	Search   string
	Ordering string
	Page     int
	PageSize int
	// Extra carries resource-specific filters such as is_active.
	Extra url.Values
}

func (p ListParams) Values() url.Values {
	v := url.Values{}
	for k, vals := range p.Extra {
		for _, val := range vals {
			if val != "" {
				v.Add(k, val)
			}
		}
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.Ordering != "" {
		v.Set("ordering", p.Ordering)
	}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(p.PageSize))
	}
	return v
}

type DashboardStats struct {
	TotalContracts      int                           `json:"total_contracts"`
	ActiveContracts     int                           `json:"active_contracts"`
	CompletedContracts  int                           `json:"completed_contracts"`
	TotalValue          Amount                        `json:"total_value"`
	TotalCounterparties int                           `json:"total_counterparties"`
	OverdueContracts    int                           `json:"overdue_contracts"`
	MonthlyContracts    []MonthlyData                 `json:"monthly_contracts"`
	MonthlyRevenue      []MonthlyData                 `json:"monthly_revenue"`
	StatusDistribution  map[string]StatusDistribution `json:"status_distribution"`
	TopCommodities      []TopCommodity                `json:"top_commodities"`
	TopCounterparties   []TopCounterparty             `json:"top_counterparties"`
	UpcomingDeliveries  []UpcomingDelivery            `json:"upcoming_deliveries"`
}

type MonthlyData struct {
	Month          string `json:"month"`
	ContractsCount int    `json:"contracts_count,omitempty"`
	TotalValue     Amount `json:"total_value,omitempty"`
}

type StatusDistribution struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type TopCommodity struct {
	CommodityName  string `json:"commodity_name"`
	ContractsCount int    `json:"contracts_count"`
	TotalValue     Amount `json:"total_value"`
}

type TopCounterparty struct {
	CounterpartyName string `json:"counterparty_name"`
	ContractsCount   int    `json:"contracts_count"`
	TotalValue       Amount `json:"total_value"`
}

type UpcomingDelivery struct {
	ContractNumber   string `json:"contract_number"`
	CounterpartyName string `json:"counterparty_name"`
	CommodityName    string `json:"commodity_name"`
	DeliveryDate     string `json:"delivery_date"`
	DaysRemaining    int    `json:"days_remaining"`
	TotalValue       Amount `json:"total_value"`
}

type GlobalSearchResults struct {
	Contracts      []ContractSearchResult     `json:"contracts"`
	Counterparties []CounterpartySearchResult `json:"counterparties"`
	Commodities    []CommoditySearchResult    `json:"commodities"`
	Traders        []TraderSearchResult       `json:"traders"`
}

// Total is the number of hits across all kinds.
func (r *GlobalSearchResults) Total() int {
	if r == nil {
		return 0
	}
	return len(r.Contracts) + len(r.Counterparties) + len(r.Commodities) + len(r.Traders)
}

type ContractSearchResult struct {
	ID               string `json:"id"`
	ContractNumber   string `json:"contract_number"`
	CounterpartyName string `json:"counterparty_name"`
	CommodityName    string `json:"commodity_name"`
	TotalValue       Amount `json:"total_value"`
	Status           string `json:"status"`
}

type CounterpartySearchResult struct {
	ID               int64  `json:"id"`
	CounterpartyName string `json:"counterparty_name"`
	CounterpartyType string `json:"counterparty_type"`
	City             string `json:"city"`
	Country          string `json:"country"`
}

type CommoditySearchResult struct {
	ID                 int64  `json:"id"`
	CommodityNameShort string `json:"commodity_name_short"`
	CommodityNameFull  string `json:"commodity_name_full"`
	CommodityGroup     string `json:"commodity_group"`
}

type TraderSearchResult struct {
	ID         int64  `json:"id"`
	TraderName string `json:"trader_name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// PasswordChange is the body of ChangePassword.
type PasswordChange struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

// GDPR consent types accepted by the backend.
const (
	ConsentDataProcessing = "data_processing"
	ConsentMarketing      = "marketing"
	ConsentAnalytics      = "analytics"
	ConsentCookies        = "cookies"
)

// GDPRConsent is one consent record. ConsentDate is set by the backend.
type GDPRConsent struct {
	ConsentType  string     `json:"consent_type"`
	ConsentGiven bool       `json:"consent_given"`
	ConsentDate  *time.Time `json:"consent_date,omitempty"`
}

// UserDataExport is the GDPR data export of the signed-in user.
type UserDataExport struct {
	PersonalInfo struct {
		Username   string     `json:"username"`
		Email      string     `json:"email"`
		FirstName  string     `json:"first_name"`
		LastName   string     `json:"last_name"`
		DateJoined *time.Time `json:"date_joined"`
		LastLogin  *time.Time `json:"last_login"`
	} `json:"personal_info"`
	Profile struct {
		Phone           string     `json:"phone"`
		Company         string     `json:"company"`
		Position        string     `json:"position"`
		Timezone        string     `json:"timezone"`
		GDPRConsent     bool       `json:"gdpr_consent"`
		GDPRConsentDate *time.Time `json:"gdpr_consent_date"`
	} `json:"profile"`
	GDPRRecords []GDPRConsent `json:"gdpr_records"`
	AuditLogs   []struct {
		Action    string    `json:"action"`
		ModelName string    `json:"model_name"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"audit_logs"`
}

// MessageResponse is the body of action endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}
