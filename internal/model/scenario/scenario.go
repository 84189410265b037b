package scenario

import "fmt"

// Scenario is a training topic the simulated customer can open with.
type Scenario struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	OpeningLine string `json:"openingLine,omitempty"`
}

// Greeting returns the customer's first line for the scenario.
func (s Scenario) Greeting() string {
	if s.OpeningLine != "" {
		return s.OpeningLine
	}
	return GenericGreeting(s.ID)
}

// GenericGreeting is used for scenarios without a scripted opener.
func GenericGreeting(id string) string {
	return fmt.Sprintf("Hi, I'm interested in %s and could use some guidance. Could you explain things in simple terms?", id)
}

// Seed provides the fixed scenario allow-list.
func Seed() []Scenario {
	return []Scenario{
		{ID: "income", Title: "Income Verification"},
		{ID: "area", Title: "Serviceable Area"},
		{ID: "insurance", Title: "Insurance"},
		{ID: "credit_score", Title: "Credit Score"},
		{
			ID:          "credit-card",
			Title:       "Credit Card",
			OpeningLine: "Hello! I'm interested in getting a credit card but I'm not sure which one would be right for me. Could you help?",
		},
		{
			ID:          "personal-loan",
			Title:       "Personal Loan",
			OpeningLine: "Hi, I need some money for my daughter's wedding next month. Could you explain how personal loans work?",
		},
		{
			ID:          "business-loan",
			Title:       "Business Loan",
			OpeningLine: "Hello, I run a small grocery store and I've been thinking about expanding it, but I'm not really sure how to go about getting a loan for it. Can you help me understand what's involved?",
		},
		{
			ID:          "savings",
			Title:       "Savings A/c",
			OpeningLine: "Hi! I just got my first job and want to start saving money properly. What's the best way to save? I heard something about high-interest accounts?",
		},
		{
			ID:          "demat",
			Title:       "Demat A/c",
			OpeningLine: "Hello, I've been thinking about investing in the stock market, but I'm completely new to this. A friend mentioned I need something called a demat account?",
		},
		{
			ID:          "investment",
			Title:       "Investment",
			OpeningLine: "Hi there! I have some savings that I want to invest wisely. Could you explain my options in simple terms?",
		},
		{ID: "product-credit-card", Title: "Credit Card Product Pitch"},
		{ID: "product-personal-loan", Title: "Personal Loan Product Pitch"},
		{ID: "product-business-loan", Title: "Business Loan Product Pitch"},
		{ID: "product-savings", Title: "Savings Product Pitch"},
		{ID: "product-demat", Title: "Demat Product Pitch"},
		{ID: "product-investment", Title: "Investment Product Pitch"},
	}
}
