package domain

// Venues soportados. El tag identifica qué adapter concreto atiende cada pata.
const (
	VenueAster   = "aster"
	VenueLighter = "lighter"
)

// Market identifica una pata de un par en un venue concreto.
// Al menos uno de {Symbol, MarketID} tiene que resolver en el venue;
// para lighter el MarketID puede descubrirse al arrancar vía el market map.
type Market struct {
	Venue    string `yaml:"venue" json:"venue"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	MarketID *int   `yaml:"market_id" json:"market_id,omitempty"`
}

// Pair es un par de mercados {A, B} a monitorizar. Name es el identificador
// estable que usan storage, panel y los suscriptores WS.
type Pair struct {
	Name string `yaml:"name" json:"name"`
	A    Market `yaml:"a" json:"a"`
	B    Market `yaml:"b" json:"b"`
}
