package domain

// TableSource supplies the current tier tables. Implementations may swap
// tables at runtime (hot reload); each returned table is immutable.
type TableSource interface {
	Tables() map[Kind]Table
}

type Service interface {
	Table(kind Kind) (Table, error)
	Classify(kind Kind, points int64) (Tier, error)
	Next(kind Kind, points int64) (Tier, bool, error)
	Progress(kind Kind, points int64) (float64, error)
	Standing(kind Kind, points int64) (Standing, error)
}
