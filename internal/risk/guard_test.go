package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func view(profit string) View {
	return View{
		Profit:         d(profit),
		DailyTarget:    d("100"),
		DailyLossLimit: d("50"),
	}
}

func newTestGuard() *Guard {
	return NewGuard(model.Profile(enum.RiskProfileConservative), d("0.35"))
}

func TestTakeProfitHalts(t *testing.T) {
	g := newTestGuard()
	dec := g.Evaluate(view("100"), d("1"))
	if dec.Action != ActionHalt || dec.Reason != enum.HaltReasonTakeProfit {
		t.Fatalf("expected take-profit halt, got %+v", dec)
	}
}

func TestStopLossHeadroomClamp(t *testing.T) {
	g := newTestGuard()

	testCases := []struct {
		desc     string
		profit   string
		stake    string
		action   Action
		stakeOut string
		reason   enum.HaltReason
	}{
		{"well inside limit proceeds", "-10", "5", ActionProceed, "5", 0},
		{"drawdown 48 of 50, stake 5 adjusts to headroom", "-48", "5", ActionAdjust, "2", 0},
		{"drawdown at limit halts", "-50", "1", ActionHalt, "", enum.HaltReasonStopLoss},
		{"headroom below broker minimum halts", "-49.80", "1", ActionHalt, "", enum.HaltReasonStopLoss},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			dec := g.Evaluate(view(tc.profit), d(tc.stake))
			if dec.Action != tc.action {
				t.Fatalf("action mismatch: got %v want %v (%+v)", dec.Action, tc.action, dec)
			}
			if tc.stakeOut != "" && !dec.Stake.Equal(d(tc.stakeOut)) {
				t.Fatalf("stake mismatch: got %s want %s", dec.Stake, tc.stakeOut)
			}
			if tc.action == ActionHalt && dec.Reason != tc.reason {
				t.Fatalf("reason mismatch: got %v want %v", dec.Reason, tc.reason)
			}
		})
	}
}

func TestTrailingStopArmRatchetHalt(t *testing.T) {
	g := newTestGuard()
	v := func(profit string) View {
		vw := view(profit)
		vw.TrailingEnabled = true
		return vw
	}

	// Profit 45: arms at 40% of the 100 target, peak 45, floor 22.50.
	dec := g.Evaluate(v("45"), d("1"))
	if dec.Action != ActionProceed {
		t.Fatalf("expected proceed at arm, got %+v", dec)
	}
	if !g.Armed() || !g.Floor().Equal(d("22.5")) {
		t.Fatalf("arm state mismatch: armed %v floor %s", g.Armed(), g.Floor())
	}

	// Profit 60: peak ratchets, floor 30.
	dec = g.Evaluate(v("60"), d("1"))
	if dec.Action != ActionProceed || !g.Floor().Equal(d("30")) {
		t.Fatalf("ratchet mismatch: %+v floor %s", dec, g.Floor())
	}

	// Retreat to 30 hits the floor.
	dec = g.Evaluate(v("30"), d("1"))
	if dec.Action != ActionHalt || dec.Reason != enum.HaltReasonTrailingStop {
		t.Fatalf("expected trailing-stop halt, got %+v", dec)
	}
}

func TestTrailingFloorNeverDecreases(t *testing.T) {
	g := newTestGuard()
	v := func(profit string) View {
		vw := view(profit)
		vw.TrailingEnabled = true
		return vw
	}

	profits := []string{"45", "60", "55", "58", "90", "80"}
	prev := decimal.Zero
	for _, p := range profits {
		g.Evaluate(v(p), d("1"))
		if g.Floor().LessThan(prev) {
			t.Fatalf("floor decreased: %s -> %s at profit %s", prev, g.Floor(), p)
		}
		prev = g.Floor()
	}
}

func TestTrailingDisabledNeverArms(t *testing.T) {
	g := newTestGuard()
	dec := g.Evaluate(view("60"), d("1"))
	if dec.Action != ActionProceed || g.Armed() {
		t.Fatalf("trailing must stay disarmed when disabled: %+v armed %v", dec, g.Armed())
	}
}
