package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/roastery/internal/domain"
	"github.com/roach88/roastery/internal/engine"
)

// Scenario operations.
const (
	ActionReceive = "receive" // PURCHASE into a new lot
	ActionRecord  = "record"  // SALE, LOSS or ADJUSTMENT
	ActionReverse = "reverse"
	ActionPlan    = "plan"
	ActionExecute = "execute"
	ActionBatch   = "batch"
	ActionBatches = "batches"
	ActionStock   = "stock"
	ActionAdvance = "advance" // move the scenario clock forward
)

func knownAction(name string) bool {
	switch name {
	case ActionReceive, ActionRecord, ActionReverse, ActionPlan, ActionExecute,
		ActionBatch, ActionBatches, ActionStock, ActionAdvance:
		return true
	default:
		return false
	}
}

// invoke runs one operation. Domain failures come back as a *domain.Error;
// malformed args come back as a plain error.
func (h *Harness) invoke(ctx context.Context, action string, a args) (map[string]any, error) {
	switch action {
	case ActionReceive:
		return h.receive(ctx, a)
	case ActionRecord:
		return h.record(ctx, a)
	case ActionReverse:
		return h.reverse(ctx, a)
	case ActionPlan:
		return h.plan(ctx, a)
	case ActionExecute:
		return h.execute(ctx, a)
	case ActionBatch:
		return h.batch(ctx, a)
	case ActionBatches:
		return h.batches(ctx, a)
	case ActionStock:
		return h.stock(ctx, a)
	case ActionAdvance:
		return h.advance(a)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func (h *Harness) receive(ctx context.Context, a args) (map[string]any, error) {
	req := engine.RecordRequest{Kind: domain.KindPurchase}
	var err error
	if req.MaterialID, err = a.str("material"); err != nil {
		return nil, err
	}
	if req.Quantity, err = a.dec("qty"); err != nil {
		return nil, err
	}
	if req.UnitCost, err = a.dec("unit_cost"); err != nil {
		return nil, err
	}
	if req.AcquiredAt, err = a.optTime("at"); err != nil {
		return nil, err
	}
	req.Note = a.optStr("note")

	res, err := h.engine.Record(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"entry": res.Entry.ID,
		"lot":   res.Lot.ID,
		"cost":  res.Entry.Cost.StringFixed(domain.CostPlaces),
	}, nil
}

func (h *Harness) record(ctx context.Context, a args) (map[string]any, error) {
	var req engine.RecordRequest
	kind, err := a.str("kind")
	if err != nil {
		return nil, err
	}
	req.Kind = domain.EntryKind(strings.ToUpper(kind))
	if req.MaterialID, err = a.str("material"); err != nil {
		return nil, err
	}
	if req.Quantity, err = a.dec("qty"); err != nil {
		return nil, err
	}
	if cost, ok, err := a.optDec("unit_cost"); err != nil {
		return nil, err
	} else if ok {
		req.UnitCost = cost
	}
	req.Note = a.optStr("note")

	res, err := h.engine.Record(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"entry": res.Entry.ID,
		"delta": res.Entry.Delta.String(),
		"cost":  res.Entry.Cost.StringFixed(domain.CostPlaces),
	}, nil
}

func (h *Harness) reverse(ctx context.Context, a args) (map[string]any, error) {
	id, err := a.str("entry")
	if err != nil {
		return nil, err
	}
	rev, err := h.engine.Reverse(ctx, id, a.optStr("note"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"entry":    rev.ID,
		"reverses": rev.ReversesID,
		"delta":    rev.Delta.String(),
	}, nil
}

func (h *Harness) plan(ctx context.Context, a args) (map[string]any, error) {
	recipe, err := a.str("recipe")
	if err != nil {
		return nil, err
	}
	target, err := a.dec("target")
	if err != nil {
		return nil, err
	}
	loss, err := a.decMap("loss")
	if err != nil {
		return nil, err
	}

	p, err := h.engine.Plan(ctx, recipe, target, loss)
	if err != nil {
		return nil, err
	}
	lines := make(map[string]any, len(p.Lines))
	for _, l := range p.Lines {
		lines[l.MaterialID] = l.RequiredInput.StringFixed(domain.WeightPlaces)
	}
	return map[string]any{
		"feasible":             p.Feasible,
		"total_required_input": p.TotalRequiredInput.StringFixed(domain.WeightPlaces),
		"effective_loss_rate":  p.EffectiveLossRate.StringFixed(domain.RatePlaces),
		"lines":                lines,
	}, nil
}

func (h *Harness) execute(ctx context.Context, a args) (map[string]any, error) {
	var (
		req engine.ExecuteRequest
		err error
	)
	if req.RecipeID, err = a.str("recipe"); err != nil {
		return nil, err
	}
	if req.Inputs, err = a.decMap("inputs"); err != nil {
		return nil, err
	}
	if req.OutputWeight, err = a.dec("output"); err != nil {
		return nil, err
	}
	if target, ok, err := a.optDec("target"); err != nil {
		return nil, err
	} else if ok {
		req.TargetOutputWeight = decimal.NewNullDecimal(target)
	}
	if req.LossRateOverrides, err = a.decMap("loss"); err != nil {
		return nil, err
	}
	req.Notes = a.optStr("notes")

	b, err := h.engine.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return batchResult(*b), nil
}

func (h *Harness) batch(ctx context.Context, a args) (map[string]any, error) {
	id, err := a.str("id")
	if err != nil {
		return nil, err
	}
	b, err := h.engine.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	return batchResult(b), nil
}

func (h *Harness) batches(ctx context.Context, a args) (map[string]any, error) {
	f := domain.BatchFilter{
		MaterialID: a.optStr("material"),
		RecipeKind: domain.RecipeKind(strings.ToUpper(a.optStr("kind"))),
		Cursor:     a.optStr("cursor"),
	}
	if limit, ok, err := a.optDec("limit"); err != nil {
		return nil, err
	} else if ok {
		f.Limit = int(limit.IntPart())
	}

	page, err := h.engine.ListBatches(ctx, f)
	if err != nil {
		return nil, err
	}
	ids := make([]any, len(page.Batches))
	for i, b := range page.Batches {
		ids[i] = b.ID
	}
	out := map[string]any{"batches": ids}
	if page.NextCursor != "" {
		out["next_cursor"] = page.NextCursor
	}
	return out, nil
}

func (h *Harness) stock(ctx context.Context, a args) (map[string]any, error) {
	id, err := a.str("material")
	if err != nil {
		return nil, err
	}
	r, err := h.engine.Stock(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"quantity": r.Stock.String(),
		"value":    r.Value.StringFixed(domain.CostPlaces),
		"lots":     len(r.Lots),
	}, nil
}

func (h *Harness) advance(a args) (map[string]any, error) {
	by, err := a.str("by")
	if err != nil {
		return nil, err
	}
	d, err := time.ParseDuration(by)
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("advance: by must be a positive duration, got %q", by)
	}
	h.clock.Set(h.clock.Peek().Add(d))
	return map[string]any{"now": h.clock.Peek().Format(time.RFC3339)}, nil
}

func batchResult(b domain.ProductionBatch) map[string]any {
	return map[string]any{
		"batch":              b.ID,
		"output_lot":         b.OutputLotID,
		"total_cost":         b.TotalCost.StringFixed(domain.CostPlaces),
		"unit_cost":          b.UnitCost.StringFixed(domain.CostPlaces),
		"realized_loss_rate": b.RealizedLossRate.StringFixed(domain.RatePlaces),
	}
}

// errorResult describes a failed step for the trace.
func errorResult(err error) map[string]any {
	shortages := domain.ShortagesOf(err)
	if len(shortages) == 0 {
		return nil
	}
	short := make(map[string]any, len(shortages))
	for _, s := range shortages {
		short[s.MaterialID] = s.Shortfall.StringFixed(domain.WeightPlaces)
	}
	return map[string]any{"shortfall": short}
}

// args reads typed values from YAML-decoded step arguments.
type args map[string]any

func (a args) str(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("missing arg %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("arg %q must be a non-empty string, got %v", key, v)
	}
	return s, nil
}

func (a args) optStr(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a args) dec(key string) (decimal.Decimal, error) {
	d, ok, err := a.optDec(key)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, fmt.Errorf("missing arg %q", key)
	}
	return d, nil
}

func (a args) optDec(key string) (decimal.Decimal, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return decimal.Zero, false, nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("arg %q: %w", key, err)
	}
	return d, true, nil
}

func (a args) decMap(key string) (map[string]decimal.Decimal, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arg %q must be a map of material to quantity", key)
	}
	out := make(map[string]decimal.Decimal, len(m))
	for _, k := range sortedKeys(m) {
		d, err := toDecimal(m[k])
		if err != nil {
			return nil, fmt.Errorf("arg %q.%s: %w", key, k, err)
		}
		out[k] = d
	}
	return out, nil
}

func (a args) optTime(key string) (time.Time, error) {
	switch v := a[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("arg %q: %w", key, err)
		}
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("arg %q must be an RFC 3339 timestamp, got %T", key, v)
	}
}

// toDecimal accepts the scalar types YAML produces for numbers. Quoted
// strings are preferred: they keep the exact literal.
func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case string:
		return decimal.NewFromString(n)
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported number type %T", v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
