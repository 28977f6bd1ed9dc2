package roster

// Squad composition for a freshly generated team: 20 players total.
var positionCounts = []struct {
	Position string
	Count    int
}{
	{"GK", 3},
	{"DEF", 6},
	{"MID", 6},
	{"ATT", 5},
}

// Position modifiers applied to the base market value.
var valueModifiers = map[string]float64{
	"GK":  0.8,
	"DEF": 0.9,
	"MID": 1.1,
	"ATT": 1.2,
}

var firstNames = []string{
	"James", "John", "Robert", "Michael", "William", "David", "Carlos", "Luis",
	"Marco", "Antonio", "Pedro", "Diego", "Rafael", "Bruno", "Lucas", "Gabriel",
	"Sergio", "Andres", "Pablo", "Juan", "Jose", "Manuel", "Francisco", "Daniel",
}

var lastNames = []string{
	"Smith", "Johnson", "Garcia", "Martinez", "Rodriguez", "Silva", "Santos",
	"Fernandez", "Lopez", "Gonzalez", "Muller", "Schmidt", "Rossi", "Bianchi",
	"Costa", "Ferreira", "Pereira", "Alves", "Oliveira", "Souza", "Mendez",
}

var countries = []string{
	"Brazil", "Argentina", "Spain", "Germany", "France", "Italy", "Portugal",
	"England", "Netherlands", "Belgium", "Uruguay", "Colombia", "Mexico",
}
