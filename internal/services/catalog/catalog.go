// Package catalog holds the static chain and token registry.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"chainvault/internal/errs"
	"chainvault/internal/models"
	"chainvault/internal/services/chains"

	"gopkg.in/yaml.v3"
)

//go:embed tokens.yaml
var defaultCatalog []byte

type Chain struct {
	ID     string             `yaml:"id" json:"id"`
	Name   string             `yaml:"name" json:"name"`
	Family chains.Family      `yaml:"family" json:"family"`
	Tokens []models.TokenMeta `yaml:"tokens" json:"tokens"`
}

type file struct {
	Chains []Chain `yaml:"chains"`
}

type Catalog struct {
	chains []Chain
	byID   map[string]int
	home   map[string]string
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token catalog: %w", err)
	}
	return Parse(data)
}

func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode token catalog: %w", err)
	}
	if len(f.Chains) == 0 {
		return nil, fmt.Errorf("token catalog has no chains")
	}

	c := &Catalog{byID: make(map[string]int), home: make(map[string]string)}
	for _, ch := range f.Chains {
		ch.ID = strings.ToLower(strings.TrimSpace(ch.ID))
		if ch.ID == "" {
			return nil, fmt.Errorf("token catalog: chain without id")
		}
		if _, dup := c.byID[ch.ID]; dup {
			return nil, fmt.Errorf("token catalog: duplicate chain %q", ch.ID)
		}
		if ch.Family == "" {
			ch.Family = chains.FamilyOf(ch.ID)
		} else {
			fam, err := chains.ParseFamily(string(ch.Family))
			if err != nil {
				return nil, fmt.Errorf("token catalog: chain %q: %w", ch.ID, err)
			}
			ch.Family = fam
		}

		seen := make(map[string]bool, len(ch.Tokens))
		for i := range ch.Tokens {
			tok := &ch.Tokens[i]
			tok.Symbol = strings.ToUpper(strings.TrimSpace(tok.Symbol))
			if tok.Symbol == "" || seen[tok.Symbol] {
				return nil, fmt.Errorf("token catalog: chain %q: empty or duplicate symbol %q", ch.ID, tok.Symbol)
			}
			if tok.Decimals < 0 || tok.Decimals > 36 {
				return nil, fmt.Errorf("token catalog: %s/%s: decimals out of range", ch.ID, tok.Symbol)
			}
			seen[tok.Symbol] = true
			if tok.Home {
				if prev, ok := c.home[tok.Symbol]; ok {
					return nil, fmt.Errorf("token catalog: %s has two home chains (%s, %s)", tok.Symbol, prev, ch.ID)
				}
				c.home[tok.Symbol] = ch.ID
			}
		}

		c.byID[ch.ID] = len(c.chains)
		c.chains = append(c.chains, ch)
	}
	return c, nil
}

func (c *Catalog) Chains() []Chain { return c.chains }

func (c *Catalog) Chain(chainID string) (Chain, error) {
	i, ok := c.byID[strings.ToLower(chainID)]
	if !ok {
		return Chain{}, fmt.Errorf("chain %q: %w", chainID, errs.ErrUnsupportedChain)
	}
	return c.chains[i], nil
}

// Family returns the encoding family of a chain, falling back to the id heuristic.
func (c *Catalog) Family(chainID string) chains.Family {
	if ch, err := c.Chain(chainID); err == nil {
		return ch.Family
	}
	return chains.FamilyOf(chainID)
}

// Lookup returns the metadata of symbol on chainID.
func (c *Catalog) Lookup(chainID, symbol string) (models.TokenMeta, error) {
	ch, err := c.Chain(chainID)
	if err != nil {
		return models.TokenMeta{}, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, tok := range ch.Tokens {
		if tok.Symbol == symbol {
			return tok, nil
		}
	}
	return models.TokenMeta{}, fmt.Errorf("%s on %s: %w", symbol, ch.ID, errs.ErrUnsupportedToken)
}

// HomeChain returns the chain a token is natively catalogued on: the chain
// that flags it home, else the first chain listing it.
func (c *Catalog) HomeChain(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if id, ok := c.home[symbol]; ok {
		return id, nil
	}
	for _, ch := range c.chains {
		for _, tok := range ch.Tokens {
			if tok.Symbol == symbol {
				return ch.ID, nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w", symbol, errs.ErrUnsupportedToken)
}
