package features

import (
	"sort"
	"strings"
	"time"

	"prometeo-backend/utils"
)

// Product combination labels outside the single and pair cases.
const (
	ComboNoProducts = "no_products"
	ComboMulti      = "multi_product"
)

// pairCanonical maps every two-product combination to its published label. It is the
// identity today; new aliases for a pair go here rather than in the label builder.
var pairCanonical = func() map[string]string {
	m := make(map[string]string)
	for i := 0; i < len(ProductTypes); i++ {
		for j := i + 1; j < len(ProductTypes); j++ {
			names := []string{string(ProductTypes[i]), string(ProductTypes[j])}
			sort.Strings(names)
			key := strings.Join(names, " + ")
			m[key] = key
		}
	}
	return m
}()

// ProductHolding is a product together with the date it was contracted.
type ProductHolding struct {
	Type ProductType
	Date time.Time
}

// ProductAggregate is the per-customer summary of product events.
type ProductAggregate struct {
	UserID              string
	Owned               map[ProductType]bool
	First               *ProductHolding
	Second              *ProductHolding
	DaysBetweenProducts int
	TenureDays          int
	NumberOfProducts    int
	Combination         string
}

// EmptyProductAggregate is the aggregate of a customer with no product events.
func EmptyProductAggregate(userID string) ProductAggregate {
	return ProductAggregate{
		UserID:      userID,
		Owned:       make(map[ProductType]bool, len(ProductTypes)),
		Combination: ComboNoProducts,
	}
}

// AggregateProducts groups product events by customer and derives ownership flags, the
// first and second products in contract order, tenure against ref and the combination label.
// Events with the same contract date keep their input order.
func AggregateProducts(events []ProductEvent, ref time.Time) map[string]ProductAggregate {
	byUser := make(map[string][]ProductEvent)
	for _, e := range events {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	out := make(map[string]ProductAggregate, len(byUser))
	for userID, evs := range byUser {
		sort.SliceStable(evs, func(i, j int) bool {
			return evs[i].ContractDate.Before(evs[j].ContractDate)
		})

		agg := EmptyProductAggregate(userID)
		for _, e := range evs {
			if e.ProductType != ProductUnknown {
				agg.Owned[e.ProductType] = true
			}
		}

		agg.First = &ProductHolding{Type: evs[0].ProductType, Date: evs[0].ContractDate}
		agg.TenureDays = utils.DaysBetween(agg.First.Date, ref)
		if len(evs) > 1 {
			agg.Second = &ProductHolding{Type: evs[1].ProductType, Date: evs[1].ContractDate}
			agg.DaysBetweenProducts = utils.DaysBetween(agg.First.Date, agg.Second.Date)
		}

		agg.NumberOfProducts = len(agg.Owned)
		agg.Combination = productCombination(agg.Owned)
		out[userID] = agg
	}
	return out
}

func productCombination(owned map[ProductType]bool) string {
	active := make([]string, 0, len(owned))
	for _, p := range ProductTypes {
		if owned[p] {
			active = append(active, string(p))
		}
	}
	sort.Strings(active)

	switch len(active) {
	case 0:
		return ComboNoProducts
	case 1:
		return active[0]
	case 2:
		label := strings.Join(active, " + ")
		if canon, ok := pairCanonical[label]; ok {
			return canon
		}
		return label
	default:
		return ComboMulti
	}
}
