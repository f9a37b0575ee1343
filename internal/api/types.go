package api

// SystemStatus from GET /0/public/SystemStatus.
type SystemStatus struct {
	Status    string `json:"status"` // online, maintenance, cancel_only, post_only
	Timestamp string `json:"timestamp"`
}

// Online reports whether the exchange accepts normal traffic.
func (s SystemStatus) Online() bool {
	return s.Status == "online"
}

// AssetPair is one entry of GET /0/public/AssetPairs.
type AssetPair struct {
	Altname      string `json:"altname"`
	WSName       string `json:"wsname"`
	Base         string `json:"base"`
	Quote        string `json:"quote"`
	PairDecimals int    `json:"pair_decimals"`
	LotDecimals  int    `json:"lot_decimals"`
	CostDecimals int    `json:"cost_decimals"`
	OrderMin     string `json:"ordermin"`
	Status       string `json:"status"`
}
