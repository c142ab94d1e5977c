package core

import "strings"

// Totals is the aggregate view of a pair of record lists.
type Totals struct {
	TotalIncome  Money `json:"totalIncome"`
	TotalExpense Money `json:"totalExpense"`
	Balance      Money `json:"balance"`
}

// ChartPoint is one labelled bar of the dashboard chart.
type ChartPoint struct {
	Label string `json:"label"`
	Value Money  `json:"value"`
}

// ComputeTotals sums both lists in integer cents. Order-independent, no
// error cases: empty input yields all-zero totals.
func ComputeTotals(services []Service, withdrawals []Withdrawal) Totals {
	var income, expense Money
	for _, s := range services {
		income = income.Add(s.Value)
	}
	for _, w := range withdrawals {
		expense = expense.Add(w.Value)
	}
	return Totals{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
	}
}

// ChartSeries maps the totals to the chart series: always exactly two
// points, income first.
func (t Totals) ChartSeries() []ChartPoint {
	return []ChartPoint{
		{Label: "income", Value: t.TotalIncome},
		{Label: "expense", Value: t.TotalExpense},
	}
}

// FilterServices returns the services whose client or description contains
// term (case-insensitive) and whose status matches the filter. The filter
// value "all" (or "") matches every status. Relative order is preserved.
func FilterServices(services []Service, term, status string) []Service {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]Service, 0, len(services))
	for _, s := range services {
		if term != "" &&
			!strings.Contains(strings.ToLower(s.Client), term) &&
			!strings.Contains(strings.ToLower(s.Description), term) {
			continue
		}
		if !matchesFilter(string(s.Status), status) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FilterWithdrawals returns the withdrawals whose description contains term
// (case-insensitive) and whose category matches the filter. The filter
// value "all" (or "") matches every category. Relative order is preserved.
func FilterWithdrawals(withdrawals []Withdrawal, term, category string) []Withdrawal {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]Withdrawal, 0, len(withdrawals))
	for _, w := range withdrawals {
		if term != "" && !strings.Contains(strings.ToLower(w.Description), term) {
			continue
		}
		if !matchesFilter(string(w.Category), category) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func matchesFilter(value, filter string) bool {
	return filter == "" || filter == FilterAll || value == filter
}
