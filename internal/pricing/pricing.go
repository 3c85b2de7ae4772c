// Package pricing maps a (role, country) pair to a one-time fee or a
// subscription price id.
package pricing

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CountryIN   = "IN"
	CountryUS   = "US"
	RoleDefault = "DEFAULT"
)

// ErrNoPlan is returned when a role has no subscription plan table.
var ErrNoPlan = errors.New("no subscription plans for role")

// Table holds fees in the lowest currency unit (paise, cents) and Stripe price ids.
type Table struct {
	OneTimeFees       map[string]map[string]int64  `yaml:"oneTimeFees" json:"oneTimeFees"`
	SubscriptionPlans map[string]map[string]string `yaml:"subscriptionPlans" json:"subscriptionPlans"`
}

// Quote is the display form of a one-time fee.
type Quote struct {
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	FormattedAmount string `json:"formattedAmount"`
	CurrencySymbol  string `json:"currencySymbol"`
}

func Default() Table {
	return Table{
		OneTimeFees: map[string]map[string]int64{
			"STUDENT":    {CountryIN: 19900, CountryUS: 500},
			"JOB_SEEKER": {CountryIN: 49900, CountryUS: 1000},
			"RECRUITER":  {CountryIN: 199900, CountryUS: 4900},
			"COMPANY":    {CountryIN: 499900, CountryUS: 14900},
			"TEST":       {CountryIN: 100, CountryUS: 100},
			RoleDefault:  {CountryIN: 49900, CountryUS: 2000},
		},
		SubscriptionPlans: map[string]map[string]string{
			"JOB_SEEKER": {
				CountryUS:   "price_jobseeker_us_monthly",
				CountryIN:   "price_jobseeker_in_monthly",
				RoleDefault: "price_jobseeker_default",
			},
			"COMPANY": {
				CountryUS:   "price_company_us_monthly",
				CountryIN:   "price_company_in_monthly",
				RoleDefault: "price_company_default",
			},
		},
	}
}

// Load reads a YAML file and layers it over the default tables. Roles present
// in the file replace the default entry for that role.
func Load(path string) (Table, error) {
	table := Default()
	if path == "" {
		return table, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read pricing file: %w", err)
	}
	var override Table
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return Table{}, fmt.Errorf("parse pricing file %s: %w", path, err)
	}
	for role, fees := range override.OneTimeFees {
		table.OneTimeFees[role] = fees
	}
	for role, plans := range override.SubscriptionPlans {
		table.SubscriptionPlans[role] = plans
	}
	if _, ok := table.OneTimeFees[RoleDefault]; !ok {
		return Table{}, fmt.Errorf("pricing file %s: %s fee bucket is required", path, RoleDefault)
	}
	return table, nil
}

// NormalizeCountry collapses every country other than IN into the US bucket.
func NormalizeCountry(country string) string {
	if strings.ToUpper(strings.TrimSpace(country)) == CountryIN {
		return CountryIN
	}
	return CountryUS
}

func CurrencyFor(country string) string {
	if NormalizeCountry(country) == CountryIN {
		return "inr"
	}
	return "usd"
}

func (t Table) FeeFor(role, country string) int64 {
	fees, ok := t.OneTimeFees[role]
	if !ok {
		fees = t.OneTimeFees[RoleDefault]
	}
	if amount, ok := fees[NormalizeCountry(country)]; ok {
		return amount
	}
	return fees[CountryUS]
}

func (t Table) PlanFor(role, country string) (string, error) {
	plans, ok := t.SubscriptionPlans[role]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoPlan, role)
	}
	for _, key := range []string{NormalizeCountry(country), RoleDefault, CountryUS} {
		if planID := plans[key]; planID != "" {
			return planID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoPlan, role)
}

func (t Table) QuoteFor(role, country string) Quote {
	amount := t.FeeFor(role, country)
	currency := CurrencyFor(country)
	symbol := "$"
	if currency == "inr" {
		symbol = "₹"
	}
	return Quote{
		Amount:          amount,
		Currency:        currency,
		FormattedAmount: fmt.Sprintf("%.2f", float64(amount)/100),
		CurrencySymbol:  symbol,
	}
}
