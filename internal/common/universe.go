package common

// DefaultUniverse is the tracked symbol universe: the set whose coverage
// defines a "complete" trading date. Roughly the 100 largest US large caps.
// Overridable via [simulation] universe in config.
var DefaultUniverse = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "BRK-B", "LLY", "AVGO",
	"JPM", "V", "UNH", "XOM", "MA", "JNJ", "PG", "HD", "COST", "ORCL",
	"MRK", "ABBV", "CVX", "CRM", "BAC", "NFLX", "AMD", "KO", "PEP", "TMO",
	"WMT", "ADBE", "LIN", "ACN", "MCD", "CSCO", "ABT", "WFC", "INTU", "QCOM",
	"IBM", "GE", "CAT", "DHR", "TXN", "AMAT", "VZ", "PFE", "AXP", "NOW",
	"CMCSA", "NEE", "PM", "DIS", "MS", "UNP", "GS", "RTX", "ISRG", "HON",
	"SPGI", "UBER", "T", "COP", "LOW", "BKNG", "AMGN", "ELV", "BLK", "SYK",
	"PLD", "TJX", "LMT", "VRTX", "MDT", "C", "SCHW", "ADP", "PANW", "DE",
	"BMY", "ADI", "SBUX", "GILD", "MMC", "BA", "MDLZ", "CB", "FI", "ETN",
	"REGN", "LRCX", "SO", "MU", "CI", "MO", "ZTS", "BSX", "KLAC", "DUK",
}
