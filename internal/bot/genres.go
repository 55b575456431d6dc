package bot

// Genre is one toggleable entry of the genre keyboard. The IDs are the
// catalog's genre identifiers shared by movies and series where possible.
type Genre struct {
	ID   int64
	Name string
}

// genreChoices is the fixed set offered during genre selection, in keyboard
// order.
var genreChoices = []Genre{
	{28, "Боевик"},
	{12, "Приключения"},
	{16, "Мультфильм"},
	{35, "Комедия"},
	{80, "Криминал"},
	{99, "Документальный"},
	{18, "Драма"},
	{14, "Фэнтези"},
	{27, "Ужасы"},
	{10749, "Мелодрама"},
	{878, "Фантастика"},
	{53, "Триллер"},
}
