package models

import (
	"fmt"
	"regexp"
	"strings"

	"fjacquet/statement-ledger/internal/dateutils"
)

// ColumnRole tells the normalizer what a template column holds.
type ColumnRole string

const (
	RoleDate        ColumnRole = "date"
	RoleValueDate   ColumnRole = "value_date"
	RoleDescription ColumnRole = "description"
	RoleAmount      ColumnRole = "amount"
	RoleDebit       ColumnRole = "debit"
	RoleCredit      ColumnRole = "credit"
	RoleBalance     ColumnRole = "balance"
	RoleIndicator   ColumnRole = "indicator"
	RoleCurrency    ColumnRole = "currency"
	RoleReference   ColumnRole = "reference"
	RoleIgnore      ColumnRole = "ignore"
)

func (r ColumnRole) valid() bool {
	switch r {
	case RoleDate, RoleValueDate, RoleDescription, RoleAmount, RoleDebit, RoleCredit,
		RoleBalance, RoleIndicator, RoleCurrency, RoleReference, RoleIgnore:
		return true
	}
	return false
}

// LayoutMode selects how the extractor slices lines into cells.
type LayoutMode string

const (
	LayoutDelimited  LayoutMode = "delimited"
	LayoutPositional LayoutMode = "positional"
)

// AmountConvention is how a statement expresses the sign of an amount.
type AmountConvention string

const (
	ConventionSigned        AmountConvention = "signed"
	ConventionParentheses   AmountConvention = "parentheses"
	ConventionDebitCredit   AmountConvention = "debit_credit"
	ConventionIndicator     AmountConvention = "indicator"
	ConventionTrailingMinus AmountConvention = "trailing_minus"
)

// Order is the statement-declared transaction order.
type Order string

const (
	OrderAscending  Order = "ascending"
	OrderDescending Order = "descending"
)

// Symbol positions.
const (
	SymbolPrefix = "prefix"
	SymbolSuffix = "suffix"
)

// DefaultDebitMarkers are the indicator values read as a debit when a
// template does not declare its own.
var DefaultDebitMarkers = []string{"DBIT", "DR", "D", "DEBIT"}

// Locale holds the number and date conventions of a statement.
type Locale struct {
	DayFirst           bool   `yaml:"day_first" json:"day_first"`
	DecimalSeparator   string `yaml:"decimal_separator" json:"decimal_separator"`
	ThousandsSeparator string `yaml:"thousands_separator" json:"thousands_separator"`
}

// Anchors are strings whose presence identifies a statement layout.
type Anchors struct {
	BankNames     []string `yaml:"bank_names" json:"bank_names"`
	HeaderPhrases []string `yaml:"header_phrases" json:"header_phrases"`
}

// Layout describes how lines are split into cells.
type Layout struct {
	Mode      LayoutMode `yaml:"mode" json:"mode"`
	Delimiter string     `yaml:"delimiter" json:"delimiter,omitempty"`
}

// Column is one column of the transaction table. Index pins a delimited
// column; Start and End pin a positional one.
type Column struct {
	Name   string     `yaml:"name" json:"name"`
	Role   ColumnRole `yaml:"role" json:"role"`
	Header string     `yaml:"header" json:"header,omitempty"`
	Index  *int       `yaml:"index" json:"index,omitempty"`
	Start  float64    `yaml:"start" json:"start,omitempty"`
	End    float64    `yaml:"end" json:"end,omitempty"`
}

// HasBounds reports whether the column declares fixed positional bounds.
func (c Column) HasBounds() bool {
	return c.End > c.Start
}

// AmountRule declares the sign convention.
type AmountRule struct {
	Convention   AmountConvention `yaml:"convention" json:"convention"`
	DebitMarkers []string         `yaml:"debit_markers" json:"debit_markers,omitempty"`
}

// SummaryRules are regular expressions applied to the page text. Opening,
// Closing, AccountNumber and AccountHolder capture one group; Period captures two.
type SummaryRules struct {
	Opening       string `yaml:"opening" json:"opening,omitempty"`
	Closing       string `yaml:"closing" json:"closing,omitempty"`
	Period        string `yaml:"period" json:"period,omitempty"`
	AccountNumber string `yaml:"account_number" json:"account_number,omitempty"`
	AccountHolder string `yaml:"account_holder" json:"account_holder,omitempty"`
}

// Summary field keys, used with Template.SummaryPattern.
const (
	SummaryOpening       = "opening"
	SummaryClosing       = "closing"
	SummaryPeriod        = "period"
	SummaryAccountNumber = "account_number"
	SummaryAccountHolder = "account_holder"
)

// Template is a declarative description of one statement layout. It is read
// only once Compile has succeeded.
type Template struct {
	Name           string       `yaml:"name" json:"name"`
	Bank           string       `yaml:"bank" json:"bank,omitempty"`
	Priority       int          `yaml:"priority" json:"priority"`
	Generic        bool         `yaml:"generic" json:"generic,omitempty"`
	Formats        []Format     `yaml:"formats" json:"formats"`
	Locale         Locale       `yaml:"locale" json:"locale"`
	Currency       string       `yaml:"currency" json:"currency,omitempty"`
	CurrencySymbol string       `yaml:"currency_symbol" json:"currency_symbol,omitempty"`
	SymbolPosition string       `yaml:"symbol_position" json:"symbol_position,omitempty"`
	Anchors        Anchors      `yaml:"anchors" json:"anchors"`
	Layout         Layout       `yaml:"layout" json:"layout"`
	Columns        []Column     `yaml:"columns" json:"columns"`
	DateFormat     string       `yaml:"date_format" json:"date_format,omitempty"`
	Amount         AmountRule   `yaml:"amount" json:"amount"`
	Order          Order        `yaml:"order" json:"order"`
	Exclusions     []string     `yaml:"exclusions" json:"exclusions,omitempty"`
	Summary        SummaryRules `yaml:"summary" json:"summary"`

	compiled   bool
	dateLayout string
	exclusions []*regexp.Regexp
	summary    map[string]*regexp.Regexp
	symbol     *regexp.Regexp
}

// Compile applies defaults, validates the template and compiles its patterns.
func (t *Template) Compile() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name is required")
	}
	t.applyDefaults()

	if err := t.validate(); err != nil {
		return fmt.Errorf("template %s: %w", t.Name, err)
	}

	if t.DateFormat != "" {
		layout, err := dateutils.ParseLayoutFromPattern(t.DateFormat)
		if err != nil {
			return fmt.Errorf("template %s: %w", t.Name, err)
		}
		t.dateLayout = layout
	}

	t.exclusions = make([]*regexp.Regexp, 0, len(t.Exclusions))
	for _, expr := range t.Exclusions {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("template %s: invalid exclusion %q: %w", t.Name, expr, err)
		}
		t.exclusions = append(t.exclusions, re)
	}

	t.summary = make(map[string]*regexp.Regexp)
	for key, expr := range map[string]string{
		SummaryOpening:       t.Summary.Opening,
		SummaryClosing:       t.Summary.Closing,
		SummaryPeriod:        t.Summary.Period,
		SummaryAccountNumber: t.Summary.AccountNumber,
		SummaryAccountHolder: t.Summary.AccountHolder,
	} {
		if expr == "" {
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("template %s: invalid summary %s pattern: %w", t.Name, key, err)
		}
		t.summary[key] = re
	}

	t.symbol = nil
	if t.CurrencySymbol != "" {
		t.symbol = symbolPattern(t.CurrencySymbol, t.SymbolPosition)
	}

	t.compiled = true
	return nil
}

func (t *Template) applyDefaults() {
	if t.Layout.Mode == "" {
		t.Layout.Mode = LayoutDelimited
	}
	if t.Amount.Convention == "" {
		t.Amount.Convention = ConventionSigned
	}
	if t.Amount.Convention == ConventionIndicator && len(t.Amount.DebitMarkers) == 0 {
		t.Amount.DebitMarkers = append([]string(nil), DefaultDebitMarkers...)
	}
	if t.Order == "" {
		t.Order = OrderAscending
	}
	if t.CurrencySymbol != "" && t.SymbolPosition == "" {
		t.SymbolPosition = SymbolPrefix
	}
	if len(t.Formats) == 0 {
		t.Formats = append([]Format(nil), AllFormats...)
	}
	if t.Locale.DecimalSeparator == "" {
		t.Locale.DecimalSeparator = "."
		if t.Locale.ThousandsSeparator == "" {
			t.Locale.ThousandsSeparator = ","
		}
	}
}

func (t *Template) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("no columns declared")
	}

	switch t.Layout.Mode {
	case LayoutDelimited, LayoutPositional:
	default:
		return fmt.Errorf("unknown layout mode %q", t.Layout.Mode)
	}
	if t.Layout.Delimiter != "" && len([]rune(t.Layout.Delimiter)) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", t.Layout.Delimiter)
	}

	switch t.Order {
	case OrderAscending, OrderDescending:
	default:
		return fmt.Errorf("unknown order %q", t.Order)
	}

	if t.SymbolPosition != "" && t.SymbolPosition != SymbolPrefix && t.SymbolPosition != SymbolSuffix {
		return fmt.Errorf("symbol_position must be prefix or suffix, got %q", t.SymbolPosition)
	}

	for i, f := range t.Formats {
		canonical, _, ok := ParseFormat(string(f))
		if !ok {
			return fmt.Errorf("unknown format %q", f)
		}
		t.Formats[i] = canonical
	}

	names := make(map[string]bool)
	roles := make(map[ColumnRole]int)
	for i, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("column %d has no name", i)
		}
		if names[c.Name] {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		names[c.Name] = true
		if !c.Role.valid() {
			return fmt.Errorf("column %q has unknown role %q", c.Name, c.Role)
		}
		if c.Index != nil && *c.Index < 0 {
			return fmt.Errorf("column %q has negative index", c.Name)
		}
		if t.Layout.Mode == LayoutPositional && c.Header == "" && !c.HasBounds() {
			return fmt.Errorf("positional column %q needs a header or start/end bounds", c.Name)
		}
		if c.Role != RoleIgnore {
			roles[c.Role]++
		}
	}

	for role, n := range roles {
		if n > 1 && role != RoleDescription {
			return fmt.Errorf("role %s declared %d times", role, n)
		}
	}
	if roles[RoleDate] == 0 {
		return fmt.Errorf("no date column")
	}

	switch t.Amount.Convention {
	case ConventionSigned, ConventionParentheses, ConventionTrailingMinus:
		if roles[RoleAmount] == 0 && (roles[RoleDebit] == 0 || roles[RoleCredit] == 0) {
			return fmt.Errorf("no amount column")
		}
	case ConventionDebitCredit:
		if roles[RoleDebit] == 0 || roles[RoleCredit] == 0 {
			return fmt.Errorf("debit_credit convention needs debit and credit columns")
		}
	case ConventionIndicator:
		if roles[RoleAmount] == 0 || roles[RoleIndicator] == 0 {
			return fmt.Errorf("indicator convention needs amount and indicator columns")
		}
	default:
		return fmt.Errorf("unknown amount convention %q", t.Amount.Convention)
	}
	return nil
}

// Compiled reports whether Compile succeeded.
func (t *Template) Compiled() bool { return t.compiled }

// DateLayout returns the Go time layout for DateFormat, or "" when none is declared.
func (t *Template) DateLayout() string { return t.dateLayout }

// ExclusionPatterns returns the compiled exclusion expressions.
func (t *Template) ExclusionPatterns() []*regexp.Regexp {
	return append([]*regexp.Regexp(nil), t.exclusions...)
}

// SummaryPattern returns the compiled summary expression for key, or nil.
func (t *Template) SummaryPattern(key string) *regexp.Regexp {
	return t.summary[key]
}

// SymbolPattern matches an amount written with the currency symbol in its
// declared position. It is nil when the template declares no symbol.
func (t *Template) SymbolPattern() *regexp.Regexp { return t.symbol }

func symbolPattern(symbol, position string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(symbol)
	if position == SymbolSuffix {
		return regexp.MustCompile(`\d\s?` + quoted)
	}
	return regexp.MustCompile(quoted + `\s?-?\d`)
}

// ColumnIndex returns the position of the first column with role, or -1.
func (t *Template) ColumnIndex(role ColumnRole) int {
	for i, c := range t.Columns {
		if c.Role == role {
			return i
		}
	}
	return -1
}

// ColumnIndexes returns the positions of every column with role.
func (t *Template) ColumnIndexes(role ColumnRole) []int {
	var out []int
	for i, c := range t.Columns {
		if c.Role == role {
			out = append(out, i)
		}
	}
	return out
}

// HasRole reports whether any column has role.
func (t *Template) HasRole(role ColumnRole) bool {
	return t.ColumnIndex(role) >= 0
}

// Headers returns the declared column headers, skipping empty ones.
func (t *Template) Headers() []string {
	var out []string
	for _, c := range t.Columns {
		if c.Header != "" {
			out = append(out, c.Header)
		}
	}
	return out
}

// Supports reports whether the template accepts documents of format f.
func (t *Template) Supports(f Format) bool {
	for _, allowed := range t.Formats {
		if allowed == f {
			return true
		}
	}
	return false
}

// DelimiterRune returns the declared delimiter, or 0 when it must be sniffed.
func (t *Template) DelimiterRune() rune {
	if r := []rune(t.Layout.Delimiter); len(r) == 1 {
		return r[0]
	}
	return 0
}

// IsDebitMarker reports whether an indicator cell marks a debit.
func (t *Template) IsDebitMarker(value string) bool {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	markers := t.Amount.DebitMarkers
	if len(markers) == 0 {
		markers = DefaultDebitMarkers
	}
	for _, m := range markers {
		if strings.ToUpper(m) == v {
			return true
		}
	}
	return false
}
