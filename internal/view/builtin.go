package view

import "tradedesk/internal/gateway/accountapi"

var (
	colSymbol = Column{Key: "Symbol", Kind: KindText}
	colSide   = Column{Key: "Side", Kind: KindText}
	colPrice  = Column{Key: "Price", Kind: KindNumber}
	colQty    = Column{Key: "Quantity", Kind: KindNumber, Aliases: []string{"Qty"}}
	colAmount = Column{Key: "Amount", Kind: KindNumber, Aliases: []string{"Size", "Position Amount"}}
)

func orderColumns() []Column {
	return []Column{
		{Key: "Order Time", Kind: KindTimestamp, Aliases: []string{"Time"}},
		colSymbol,
		colSide,
		{Key: "Type", Kind: KindText},
		{Key: "Status", Kind: KindText},
		colPrice,
		colQty,
	}
}

func tradeColumns() []Column {
	return []Column{
		{Key: "Time", Kind: KindTimestamp, Aliases: []string{"Trade Time"}},
		colSymbol,
		colSide,
		{Key: "Price", Kind: KindNumber, Aliases: []string{"Trade Price"}},
		{Key: "Quantity", Kind: KindNumber, Aliases: []string{"Trade Amount", "Qty"}},
		{Key: "PNL", Kind: KindPNL, Aliases: []string{"Trade PNL", "Realized PNL"}},
	}
}

func positionColumns() []Column {
	return []Column{
		colSymbol,
		colSide,
		colAmount,
		{Key: "Entry Price", Kind: KindNumber},
		{Key: "Mark Price", Kind: KindNumber},
		{Key: "Entry Time", Kind: KindTimestamp},
		{Key: "Current PNL", Kind: KindPNL, Aliases: []string{"Unrealized PNL", "PNL"}},
	}
}

func positionSeries() []SeriesSpec {
	return []SeriesSpec{{
		ID:    "size_by_symbol",
		Title: "Position Size Distribution",
		Kind:  SeriesGroupSum,
		Chart: ChartPie,
		Group: "Symbol",
		Y:     "Amount",
	}}
}

// Builtin returns the default view definitions, keyed by view name.
func Builtin() map[string]Definition {
	defs := []Definition{
		{
			Name:    accountapi.EndpointAccountSummary,
			Title:   "Account Summary",
			Payload: PayloadObject,
			Columns: []Column{
				{Key: "Balance", Label: "Total Balance", Kind: KindMoney},
				{Key: "Unrealized PNL", Kind: KindPNL},
				{Key: "Margin Balance", Kind: KindMoney},
				{Key: "Available Balance", Kind: KindMoney},
			},
		},
		{
			Name:         accountapi.EndpointPositions,
			Title:        "Active Positions",
			Columns:      positionColumns(),
			TimeColumn:   "Entry Time",
			Series:       positionSeries(),
			EmptyMessage: "No positions found.",
		},
		{
			Name:         accountapi.EndpointOpenPositions,
			Title:        "Open Positions",
			Columns:      positionColumns(),
			TimeColumn:   "Entry Time",
			Series:       positionSeries(),
			EmptyMessage: "No open positions found.",
		},
		{
			Name:         accountapi.EndpointOpenOrders,
			Title:        "Open Orders",
			Columns:      orderColumns(),
			TimeColumn:   "Order Time",
			EmptyMessage: "No open orders found.",
		},
		{
			Name:       accountapi.EndpointOrderHistory,
			Title:      "Order History",
			Columns:    orderColumns(),
			TimeColumn: "Order Time",
			Series: []SeriesSpec{{
				ID:    "orders_by_status",
				Title: "Orders by Status",
				Kind:  SeriesGroupCount,
				Chart: ChartPie,
				Group: "Status",
			}},
			EmptyMessage: "No order history found.",
		},
		{
			Name:       accountapi.EndpointTradeHistory,
			Title:      "Trade History",
			Columns:    tradeColumns(),
			TimeColumn: "Time",
			Series: []SeriesSpec{
				{ID: "pnl_distribution", Title: "PNL Distribution", Kind: SeriesHistogram, Chart: ChartHistogram, Y: "PNL"},
				{ID: "cumulative_pnl", Title: "Cumulative PNL", Kind: SeriesCumulative, Chart: ChartLine, X: "Time", Y: "PNL"},
				{ID: "price_vs_pnl", Title: "Trade Price vs Profit/Loss by Symbol", Kind: SeriesScatter, Chart: ChartScatter, X: "Price", Y: "PNL", Group: "Symbol"},
				{ID: "size_by_symbol", Title: "Trade Size Distribution by Crypto Symbol", Kind: SeriesGroupSum, Chart: ChartDonut, Group: "Symbol", Y: "Quantity"},
			},
			EmptyMessage: "No trade history available.",
		},
		{
			Name:    accountapi.EndpointPNLAnalytics,
			Title:   "Daily Performance",
			Columns: []Column{
				{Key: "Date", Kind: KindDate, Required: true},
				{Key: "PNL", Kind: KindPNL, Required: true},
			},
			TimeColumn: "Date",
			Series: []SeriesSpec{
				{ID: "daily_pnl", Title: "Daily Performance Analysis", Kind: SeriesBar, Chart: ChartBar, X: "Date", Y: "PNL", SMAPeriod: 7},
				{ID: "cumulative_pnl", Title: "Cumulative Trading Performance", Kind: SeriesCumulative, Chart: ChartLine, X: "Date", Y: "PNL", Percent: true},
			},
			EmptyMessage: "No PNL data available.",
		},
		{
			Name:       accountapi.EndpointTradeAnalytics,
			Title:      "Trade Analytics",
			Columns:    tradeColumns(),
			TimeColumn: "Time",
			Series: []SeriesSpec{
				{ID: "price_vs_pnl", Title: "Trade Price vs Profit/Loss by Symbol", Kind: SeriesScatter, Chart: ChartScatter, X: "Price", Y: "PNL", Group: "Symbol"},
				{ID: "size_by_symbol", Title: "Trade Size Distribution by Crypto Symbol", Kind: SeriesGroupSum, Chart: ChartDonut, Group: "Symbol", Y: "Quantity"},
			},
			EmptyMessage: "Insufficient data for analytics visualization.",
		},
		{
			Name:    accountapi.EndpointClosedPositions,
			Title:   "Closed Positions",
			Columns: []Column{
				colSymbol,
				colSide,
				colAmount,
				{Key: "Entry Price", Kind: KindNumber},
				{Key: "Exit Price", Kind: KindNumber, Aliases: []string{"Close Price"}},
				{Key: "Entry Time", Kind: KindTimestamp},
				{Key: "Close Time", Kind: KindTimestamp, Aliases: []string{"Exit Time"}},
				{Key: "Realized PNL", Kind: KindPNL, Aliases: []string{"PNL"}},
			},
			TimeColumn: "Close Time",
			Series: []SeriesSpec{
				{ID: "cumulative_pnl", Title: "Cumulative Realized PNL", Kind: SeriesCumulative, Chart: ChartLine, X: "Close Time", Y: "Realized PNL"},
				{ID: "pnl_by_symbol", Title: "Realized PNL by Symbol", Kind: SeriesGroupSum, Chart: ChartBar, Group: "Symbol", Y: "Realized PNL"},
			},
			EmptyMessage: "No closed positions found.",
		},
		{
			Name:    accountapi.EndpointPositionHistory,
			Title:   "Position History",
			Columns: []Column{
				colSymbol,
				colSide,
				colAmount,
				{Key: "Entry Time", Kind: KindTimestamp},
				{Key: "Close Time", Kind: KindTimestamp, Aliases: []string{"Exit Time"}},
				{Key: "PNL", Kind: KindPNL, Aliases: []string{"Realized PNL"}},
			},
			TimeColumn: "Entry Time",
			Series: []SeriesSpec{
				{ID: "cumulative_pnl", Title: "Cumulative PNL", Kind: SeriesCumulative, Chart: ChartLine, X: "Entry Time", Y: "PNL"},
			},
			EmptyMessage: "No position history found.",
		},
	}
	out := make(map[string]Definition, len(defs))
	for _, def := range defs {
		out[def.Name] = def
	}
	return out
}

// BuiltinPages returns the default navigation menu.
func BuiltinPages() []Page {
	return []Page{
		{Name: "account", Title: "Account Summary", Views: []string{accountapi.EndpointAccountSummary}},
		{Name: "positions", Title: "Positions", Views: []string{accountapi.EndpointPositions}},
		{Name: "open_positions", Title: "Open Positions", Views: []string{accountapi.EndpointOpenPositions}},
		{Name: "open_orders", Title: "Open Orders", Views: []string{accountapi.EndpointOpenOrders}},
		{Name: "order_history", Title: "Order History", Views: []string{accountapi.EndpointOrderHistory}},
		{Name: "trade_history", Title: "Trade History", Views: []string{accountapi.EndpointTradeHistory}},
		{Name: "closed_positions", Title: "Closed Positions", Views: []string{accountapi.EndpointClosedPositions}},
		{Name: "position_history", Title: "Position History", Views: []string{accountapi.EndpointPositionHistory}},
		{Name: "analytics", Title: "Analytics", Views: []string{accountapi.EndpointPNLAnalytics, accountapi.EndpointTradeAnalytics}},
	}
}
