package core

import (
	"reflect"
	"testing"
)

func TestComputeTotalsEmpty(t *testing.T) {
	got := ComputeTotals(nil, nil)
	want := Totals{}
	if got != want {
		t.Fatalf("expected zero totals, got %+v", got)
	}
}

func TestComputeTotalsExactDecimals(t *testing.T) {
	services := []Service{{Value: Money{Cents: 1010}}} // 10.10
	withdrawals := []Withdrawal{{Value: Money{Cents: 305}}} // 3.05
	got := ComputeTotals(services, withdrawals)
	if got.Balance.Cents != 705 {
		t.Fatalf("expected balance 7.05, got %s", got.Balance)
	}
	if got.Balance != got.TotalIncome.Sub(got.TotalExpense) {
		t.Fatalf("balance invariant broken: %+v", got)
	}
}

func TestComputeTotalsAndChartSeries(t *testing.T) {
	services := []Service{
		{Value: Money{Cents: 100000}, Status: StatusCompleted},
		{Value: Money{Cents: 50000}, Status: StatusPending},
	}
	withdrawals := []Withdrawal{
		{Value: Money{Cents: 30000}, Category: CategoryOperational},
	}

	totals := ComputeTotals(services, withdrawals)
	if totals.TotalIncome.Cents != 150000 || totals.TotalExpense.Cents != 30000 || totals.Balance.Cents != 120000 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	series := totals.ChartSeries()
	want := []ChartPoint{
		{Label: "income", Value: Money{Cents: 150000}},
		{Label: "expense", Value: Money{Cents: 30000}},
	}
	if !reflect.DeepEqual(series, want) {
		t.Fatalf("unexpected chart series: %+v", series)
	}
}

func TestFilterServicesIdentity(t *testing.T) {
	services := []Service{
		{ID: "a", Client: "Acme", Status: StatusPending},
		{ID: "b", Client: "Globex", Status: StatusCompleted},
		{ID: "c", Client: "Initech", Status: StatusInProgress},
	}
	got := FilterServices(services, "", FilterAll)
	if !reflect.DeepEqual(got, services) {
		t.Fatalf("identity filter changed the list: %+v", got)
	}
}

func TestFilterServicesIdempotent(t *testing.T) {
	services := []Service{
		{ID: "a", Client: "Acme", Status: StatusPending},
		{ID: "b", Client: "Acme Labs", Status: StatusCompleted},
		{ID: "c", Client: "Globex", Status: StatusPending},
	}
	once := FilterServices(services, "acme", string(StatusPending))
	twice := FilterServices(once, "acme", string(StatusPending))
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("filter not idempotent: %+v vs %+v", once, twice)
	}
	if len(once) != 1 || once[0].ID != "a" {
		t.Fatalf("unexpected filter result: %+v", once)
	}
}

func TestFilterServicesCaseInsensitive(t *testing.T) {
	services := []Service{{ID: "a", Client: "Acme", Status: StatusPending}}
	for _, term := range []string{"acme", "ACME", "aCmE"} {
		if got := FilterServices(services, term, FilterAll); len(got) != 1 {
			t.Fatalf("term %q should match, got %+v", term, got)
		}
	}
	// Description participates in the match for services.
	services[0].Description = "annual maintenance"
	if got := FilterServices(services, "MAINT", FilterAll); len(got) != 1 {
		t.Fatalf("description match failed: %+v", got)
	}
}

func TestFilterServicesByStatus(t *testing.T) {
	services := []Service{
		{ID: "a", Client: "Acme", Value: Money{Cents: 100000}, Status: StatusCompleted},
		{ID: "b", Client: "Acme", Value: Money{Cents: 50000}, Status: StatusPending},
	}
	got := FilterServices(services, "", string(StatusPending))
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("status filter: %+v", got)
	}
	if got := FilterServices(services, "", FilterAll); len(got) != 2 {
		t.Fatalf("all filter should return everything: %+v", got)
	}
	if got := FilterServices(services, "", "cancelled"); len(got) != 0 {
		t.Fatalf("unmatched filter should yield empty, got %+v", got)
	}
}

func TestFilterWithdrawals(t *testing.T) {
	withdrawals := []Withdrawal{
		{ID: "a", Description: "Office rent", Category: CategoryOperational},
		{ID: "b", Description: "Lunch", Category: CategoryPersonal},
		{ID: "c", Description: "office supplies", Category: CategoryOperational},
	}
	got := FilterWithdrawals(withdrawals, "OFFICE", string(CategoryOperational))
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("expected stable [a c], got %+v", got)
	}
	if got := FilterWithdrawals(withdrawals, "", FilterAll); len(got) != 3 {
		t.Fatalf("all filter: %+v", got)
	}
	if got := FilterWithdrawals(withdrawals, "tax", FilterAll); len(got) != 0 {
		t.Fatalf("no match expected, got %+v", got)
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	services := []Service{
		{ID: "1", Client: "zeta", Status: StatusPending},
		{ID: "2", Client: "alpha", Status: StatusPending},
		{ID: "3", Client: "zeta co", Status: StatusPending},
	}
	got := FilterServices(services, "zeta", FilterAll)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("order not preserved: %+v", got)
	}
}
