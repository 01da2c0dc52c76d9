package models

// TokenMeta is the catalog entry of a token on one chain.
type TokenMeta struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name" yaml:"name"`
	Icon     string `json:"icon,omitempty" yaml:"icon"`
	Decimals int    `json:"decimals" yaml:"decimals"`
	Home     bool   `json:"home,omitempty" yaml:"home"`
}
