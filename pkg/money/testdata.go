package money

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// LineItemFixture is a generated BoQ line, shaped the way a real primary
// line item would appear after header/column mapping: code, description,
// quantity, unit, unit rate, and the consistent (or deliberately broken)
// total.
type LineItemFixture struct {
	Code        string
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   *Money
	TotalPrice  *Money
}

// TestDataGenerator produces realistic BoQ fixtures using gofakeit, the way
// the teacher codebase seeds its transaction fixtures.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(0)}
}

// NewTestDataGeneratorWithSeed creates a generator with a fixed seed, for
// reproducible table-driven tests.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

var boqTrades = []string{
	"Concrete", "Reinforcement", "Formwork", "Brickwork", "Blockwork",
	"Roofing", "Plastering", "Painting", "Tiling", "Electrical conduit",
	"Plumbing pipework", "Excavation", "Backfilling", "Waterproofing",
	"Structural steel", "Glazing", "Insulation", "Drainage",
}

var boqUnits = []string{"m2", "m3", "kg", "ton", "nos", "lm", "each", "l"}

// Description generates a plausible BoQ line description, e.g.
// "Supply and install Reinforcement to specification".
func (g *TestDataGenerator) Description() string {
	trade := g.faker.RandomString(boqTrades)
	verbs := []string{"Supply and install", "Supply and fix", "Provide and lay", "Construct"}
	return fmt.Sprintf("%s %s to specification", g.faker.RandomString(verbs), trade)
}

// Unit returns a random recognized unit-of-measure token.
func (g *TestDataGenerator) Unit() string {
	return g.faker.RandomString(boqUnits)
}

// Code generates a bill item code like "C-042".
func (g *TestDataGenerator) Code() string {
	return fmt.Sprintf("%s-%03d", string(rune('A'+g.faker.Number(0, 25))), g.faker.Number(1, 999))
}

// Quantity generates a positive decimal quantity with up to two decimal
// places, the shape a parsed numeric cell takes.
func (g *TestDataGenerator) Quantity() decimal.Decimal {
	whole := g.faker.Number(1, 5000)
	cents := g.faker.Number(0, 99)
	return decimal.NewFromInt(int64(whole)).Add(decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)))
}

// UnitPrice generates a unit rate in the given currency.
func (g *TestDataGenerator) UnitPrice(currency string) *Money {
	cents := int64(g.faker.Number(100, 500000))
	return New(cents, currency)
}

// LineItem generates a self-consistent fixture: total_price equals
// unit_price * quantity exactly, so validator tests can perturb a single
// field to manufacture a targeted inconsistency.
func (g *TestDataGenerator) LineItem(currency string) LineItemFixture {
	qty := g.Quantity()
	price := g.UnitPrice(currency)
	return LineItemFixture{
		Code:        g.Code(),
		Description: g.Description(),
		Quantity:    qty,
		Unit:        g.Unit(),
		UnitPrice:   price,
		TotalPrice:  price.MultiplyDecimal(qty),
	}
}

// LineItems generates n fixtures.
func (g *TestDataGenerator) LineItems(n int, currency string) []LineItemFixture {
	items := make([]LineItemFixture, n)
	for i := range items {
		items[i] = g.LineItem(currency)
	}
	return items
}
