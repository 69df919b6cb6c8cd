// Package instrument resolves the CSV master instrument catalogue named in
// spec.md §7: underlying symbol + expiry + strike + option type -> security
// id. The file itself is an external collaborator (refreshed by the broker
// integration out of process); this package only owns the in-memory lookup
// built from it.
package instrument

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"optionscalper/internal/model"
)

// expiryLayout matches spec.md §7's "ISO date" column.
const expiryLayout = "2006-01-02"

// Catalogue is an in-memory, read-only index over the instrument master.
// Built once at startup and never mutated, so lookups need no locking.
type Catalogue struct {
	byKey        map[string]model.Instrument // "segment:security_id"
	byResolveKey map[string]model.Instrument // "underlying|expiry|strike|option_type"
	expiries     map[string][]time.Time      // underlying -> ascending expiries
	byUnderlying map[string]model.Instrument // underlying -> IDX row, for spot lookups
}

// LoadCSV reads the instrument master from path. Expected columns (header
// row required): segment,security_id,underlying_symbol,expiry,strike,
// option_type,instrument_type,lot_size,tick_size.
func LoadCSV(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instrument master: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load builds a Catalogue from any reader in the same CSV shape as LoadCSV,
// so tests can build one from a string without touching the filesystem.
func Load(r io.Reader) (*Catalogue, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read instrument master header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"segment", "security_id", "underlying_symbol", "expiry", "strike", "option_type", "instrument_type", "lot_size", "tick_size"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("instrument master missing column %q", required)
		}
	}

	cat := &Catalogue{
		byKey:        make(map[string]model.Instrument),
		byResolveKey: make(map[string]model.Instrument),
		expiries:     make(map[string][]time.Time),
		byUnderlying: make(map[string]model.Instrument),
	}
	expirySeen := make(map[string]map[int64]bool)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read instrument master row: %w", err)
		}

		inst, parseErr := parseRow(row, col)
		if parseErr != nil {
			return nil, parseErr
		}

		cat.byKey[inst.Key()] = inst
		cat.byResolveKey[resolveKey(inst.UnderlyingSym, inst.Expiry, inst.Strike, inst.OptionType)] = inst
		if inst.InstrumentType == "IDX" {
			cat.byUnderlying[inst.UnderlyingSym] = inst
		}

		if expirySeen[inst.UnderlyingSym] == nil {
			expirySeen[inst.UnderlyingSym] = make(map[int64]bool)
		}
		day := inst.Expiry.Unix()
		if !expirySeen[inst.UnderlyingSym][day] {
			expirySeen[inst.UnderlyingSym][day] = true
			cat.expiries[inst.UnderlyingSym] = append(cat.expiries[inst.UnderlyingSym], inst.Expiry)
		}
	}

	for sym := range cat.expiries {
		sort.Slice(cat.expiries[sym], func(i, j int) bool {
			return cat.expiries[sym][i].Before(cat.expiries[sym][j])
		})
	}

	return cat, nil
}

func parseRow(row []string, col map[string]int) (model.Instrument, error) {
	get := func(name string) string { return row[col[name]] }

	expiry, err := time.Parse(expiryLayout, get("expiry"))
	if err != nil {
		return model.Instrument{}, fmt.Errorf("parse expiry %q: %w", get("expiry"), err)
	}
	strike, err := strconv.ParseInt(get("strike"), 10, 64)
	if err != nil {
		return model.Instrument{}, fmt.Errorf("parse strike %q: %w", get("strike"), err)
	}
	lotSize, err := strconv.ParseInt(get("lot_size"), 10, 64)
	if err != nil {
		return model.Instrument{}, fmt.Errorf("parse lot_size %q: %w", get("lot_size"), err)
	}
	tickSize, err := strconv.ParseInt(get("tick_size"), 10, 64)
	if err != nil {
		return model.Instrument{}, fmt.Errorf("parse tick_size %q: %w", get("tick_size"), err)
	}

	return model.Instrument{
		Segment:        get("segment"),
		SecurityID:     get("security_id"),
		UnderlyingSym:  get("underlying_symbol"),
		Expiry:         expiry,
		Strike:         strike,
		OptionType:     get("option_type"),
		InstrumentType: get("instrument_type"),
		LotSize:        lotSize,
		TickSize:       tickSize,
	}, nil
}

func resolveKey(underlying string, expiry time.Time, strike int64, optionType string) string {
	return underlying + "|" + expiry.Format(expiryLayout) + "|" + strconv.FormatInt(strike, 10) + "|" + optionType
}

// Resolve maps (underlying, expiry, strike, CE|PE) to a security id, per
// spec.md §4 module 4 / §7.
func (c *Catalogue) Resolve(underlying string, expiry time.Time, strike int64, optionType string) (model.Instrument, bool) {
	inst, ok := c.byResolveKey[resolveKey(underlying, expiry, strike, optionType)]
	return inst, ok
}

// IndexInstrument looks up the underlying index row (instrument_type=IDX)
// for a symbol, used by the engine to know which tick to aggregate into
// candles and read spot price from.
func (c *Catalogue) IndexInstrument(underlying string) (model.Instrument, bool) {
	inst, ok := c.byUnderlying[underlying]
	return inst, ok
}

// ByKey looks up an instrument by its (segment, security id) storage key.
func (c *Catalogue) ByKey(segment, securityID string) (model.Instrument, bool) {
	inst, ok := c.byKey[segment+":"+securityID]
	return inst, ok
}

// Expiries returns every expiry available for underlying, ascending.
func (c *Catalogue) Expiries(underlying string) []time.Time {
	return c.expiries[underlying]
}

// NearestExpiry returns the first expiry on or after 'after', per spec.md
// §7 ("expiries returned in ascending order") — the option picker always
// trades the nearest one.
func (c *Catalogue) NearestExpiry(underlying string, after time.Time) (time.Time, bool) {
	for _, e := range c.expiries[underlying] {
		if !e.Before(after) {
			return e, true
		}
	}
	return time.Time{}, false
}
