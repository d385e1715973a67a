package accountapi

// Endpoint names served by the account backend. account_summary returns a
// JSON object, every other endpoint a JSON array of objects.
const (
	EndpointAccountSummary  = "account_summary"
	EndpointPositions       = "positions"
	EndpointOpenOrders      = "open_orders"
	EndpointOrderHistory    = "order_history"
	EndpointTradeHistory    = "trade_history"
	EndpointPNLAnalytics    = "pnl_analytics"
	EndpointClosedPositions = "closed_positions"
	EndpointPositionHistory = "position_history"
	EndpointOpenPositions   = "open_positions"
	EndpointTradeAnalytics  = "trade_analytics"
)

// KnownEndpoints lists every endpoint in menu order.
var KnownEndpoints = []string{
	EndpointAccountSummary,
	EndpointPositions,
	EndpointOpenOrders,
	EndpointOrderHistory,
	EndpointTradeHistory,
	EndpointPNLAnalytics,
	EndpointClosedPositions,
	EndpointPositionHistory,
	EndpointOpenPositions,
	EndpointTradeAnalytics,
}
