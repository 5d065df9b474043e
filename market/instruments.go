package market

import "encoding/json"

// Instrument is per-symbol metadata returned by GET /symbols.
type Instrument struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Digits       int    `json:"digits"`
	ContractSize Number `json:"contract_size"`
	MinVolume    Number `json:"min_volume"`
	MaxVolume    Number `json:"max_volume"`
	VolumeStep   Number `json:"volume_step"`
	MarginRate   Number `json:"margin_rate"`
	Favorite     bool   `json:"favorite"`
}

// UnmarshalJSON accepts "code" as an alias of "symbol" and normalizes it.
func (in *Instrument) UnmarshalJSON(b []byte) error {
	type plain Instrument
	var aux struct {
		plain
		Code string `json:"code"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*in = Instrument(aux.plain)
	if in.Symbol == "" {
		in.Symbol = aux.Code
	}
	in.Symbol = Symbol(in.Symbol)
	return nil
}

// Contract returns the metadata contract size, else the symbol convention.
func (in Instrument) Contract() float64 {
	if in.ContractSize.Known() && in.ContractSize.Float64() > 0 {
		return in.ContractSize.Float64()
	}
	return ContractSize(in.Symbol)
}

// Instruments indexes a symbol list by normalized symbol.
type Instruments map[string]Instrument

func IndexInstruments(list []Instrument) Instruments {
	out := make(Instruments, len(list))
	for _, in := range list {
		if in.Symbol == "" {
			continue
		}
		out[in.Symbol] = in
	}
	return out
}

func (is Instruments) Lookup(sym string) (Instrument, bool) {
	in, ok := is[Symbol(sym)]
	return in, ok
}

// Favorites lists favorite symbols in the order given.
func Favorites(list []Instrument) []string {
	var out []string
	for _, in := range list {
		if in.Favorite {
			out = append(out, in.Symbol)
		}
	}
	return out
}
