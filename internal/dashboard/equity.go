package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradedesk/internal/view"
)

// EquityPage charts the archived account snapshots.
const EquityPage = "equity"

const equityView = "equity"

func equityPage() view.Page {
	return view.Page{Name: EquityPage, Title: "Equity", Views: []string{equityView}}
}

var (
	equityOnce sync.Once
	equityDef  view.Definition
	equityErr  error
)

func equityDefinition() (view.Definition, error) {
	equityOnce.Do(func() {
		equityDef, equityErr = view.Normalize(view.Definition{
			Name:     equityView,
			Title:    "Account Equity",
			Endpoint: "snapshots",
			Columns: []view.Column{
				{Key: "Taken At", Kind: view.KindTimestamp, Required: true},
				{Key: "Balance", Label: "Total Balance", Kind: view.KindMoney},
				{Key: "Unrealized PNL", Kind: view.KindPNL},
			},
			TimeColumn:   "Taken At",
			HidePassthru: true,
			Series: []view.SeriesSpec{
				{ID: "balance", Title: "Balance Over Time", Kind: view.SeriesValue, Chart: view.ChartLine, X: "Taken At", Y: "Balance"},
				{ID: "unrealized_pnl", Title: "Unrealized PNL Over Time", Kind: view.SeriesValue, Chart: view.ChartBar, X: "Taken At", Y: "Unrealized PNL"},
			},
			EmptyMessage: "No account snapshots recorded yet.",
		})
	})
	return equityDef, equityErr
}

// Equity shapes the archived snapshots like any other array view.
func (s *Service) Equity(ctx context.Context) (ViewRender, error) {
	def, err := equityDefinition()
	if err != nil {
		return ViewRender{}, err
	}
	if s.snapshots == nil {
		return ViewRender{}, ErrSnapshotsOff
	}
	records, err := s.snapshots.List(ctx, time.Time{}, 0)
	if err != nil {
		return ViewRender{Result: view.EmptyResult(def), Warning: fmt.Sprintf("Error reading snapshots: %v", err)}, nil
	}
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := map[string]any{"Taken At": rec.TakenAt.UnixMilli()}
		if rec.Balance != nil {
			row["Balance"] = *rec.Balance
		}
		if rec.UnrealizedPNL != nil {
			row["Unrealized PNL"] = *rec.UnrealizedPNL
		}
		rows = append(rows, row)
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return ViewRender{}, err
	}
	shaped, err := s.shaper.Shape(def, body)
	if err != nil {
		return ViewRender{}, err
	}
	return ViewRender{Result: shaped, FetchedAt: s.now()}, nil
}

func (s *Service) renderEquityPage(ctx context.Context) (PageRender, error) {
	vr, err := s.Equity(ctx)
	if err != nil {
		return PageRender{}, err
	}
	page := equityPage()
	out := PageRender{
		ID:         uuid.NewString(),
		Page:       page.Name,
		Title:      page.Title,
		Views:      []ViewRender{vr},
		RenderedAt: s.now(),
	}
	if vr.Warning != "" {
		out.Warnings = []string{vr.Warning}
	}
	return out, nil
}
