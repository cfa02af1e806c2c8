package playerdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidBundle is returned by Import when the document cannot be parsed.
var ErrInvalidBundle = errors.New("invalid import bundle")

// Export collects every persisted entity into a bundle. It does not write.
func (m *Manager) Export(ctx context.Context) (Bundle, error) {
	b := Bundle{
		Settings:  m.Settings(ctx),
		Purchases: m.Purchases(ctx),
		Analytics: m.Events(ctx),
		Games:     map[string]string{},
	}

	keys, err := m.store.Keys(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("list keys: %w", err)
	}
	for _, k := range keys {
		if !isGameKey(k) {
			continue
		}
		v, err := m.store.Get(ctx, k)
		if err != nil {
			// removed between Keys and Get
			continue
		}
		b.Games[k] = v
	}
	return b, nil
}

// importDoc is the accepted import shape. Sections are kept raw so absent and null
// sections can be told apart from present ones.
type importDoc struct {
	Settings  json.RawMessage   `json:"settings"`
	Purchases json.RawMessage   `json:"purchases"`
	Analytics json.RawMessage   `json:"analytics"`
	Games     map[string]string `json:"games"`
}

type parsedBundle struct {
	settings  *Settings
	purchases []Purchase
	hasBuys   bool
	gameKeys  []string
	games     map[string]string
}

// ParseBundle validates raw as an import document without writing anything.
func ParseBundle(raw []byte) (ImportResult, error) {
	p, err := parseBundle(raw)
	if err != nil {
		return ImportResult{}, err
	}
	return p.result(), nil
}

func parseBundle(raw []byte) (*parsedBundle, error) {
	var doc *importDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is null", ErrInvalidBundle)
	}

	p := &parsedBundle{games: doc.Games}
	if present(doc.Settings) {
		s := DefaultSettings()
		if err := json.Unmarshal(doc.Settings, &s); err != nil {
			return nil, fmt.Errorf("%w: settings: %v", ErrInvalidBundle, err)
		}
		settingsCodec.normalize(&s)
		p.settings = &s
	}
	if present(doc.Purchases) {
		var buys []Purchase
		if err := json.Unmarshal(doc.Purchases, &buys); err != nil {
			return nil, fmt.Errorf("%w: purchases: %v", ErrInvalidBundle, err)
		}
		purchasesCodec.normalize(&buys)
		p.purchases = buys
		p.hasBuys = true
	}
	for k := range doc.Games {
		p.gameKeys = append(p.gameKeys, k)
	}
	sort.Strings(p.gameKeys)
	return p, nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func (p *parsedBundle) result() ImportResult {
	r := ImportResult{Settings: p.settings != nil, GameKeys: len(p.gameKeys)}
	if p.hasBuys {
		r.Purchases = len(p.purchases)
	}
	return r
}

// Import restores a bundle produced by Export. The document is fully parsed before the
// first write; a parse failure returns ErrInvalidBundle and writes nothing. The writes
// themselves are applied one by one, and the returned result counts what was applied
// before any failure. The analytics section is ignored.
func (m *Manager) Import(ctx context.Context, raw []byte) (ImportResult, error) {
	p, err := parseBundle(raw)
	if err != nil {
		return ImportResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var res ImportResult
	if p.settings != nil {
		if err := m.setSettingsLocked(ctx, *p.settings); err != nil {
			return res, err
		}
		res.Settings = true
	}
	if p.hasBuys {
		if err := save(ctx, m, PurchasesKey, purchasesCodec, p.purchases); err != nil {
			return res, err
		}
		res.Purchases = len(p.purchases)
	}
	for _, k := range p.gameKeys {
		if err := m.write(ctx, "game", k, p.games[k]); err != nil {
			return res, err
		}
		res.GameKeys++
	}
	m.log.Info().Bool("settings", res.Settings).Int("purchases", res.Purchases).
		Int("game_keys", res.GameKeys).Msg("bundle imported")
	return res, nil
}
