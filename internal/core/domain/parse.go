package domain

// Section is a transient parse artifact. Parent is an index into the owning
// ParsedDocument's Sections slice (-1 for top-level sections); the heading
// hierarchy is reconstructed through indexes rather than node links.
type Section struct {
	Heading string
	Level   int
	Content string
	// HeadingStart is the offset of the heading line itself; Start and End
	// delimit the section content that follows it.
	HeadingStart int
	Start        int
	End          int
	Parent       int
	Position     int
}

type ParsedDocument struct {
	FilePath   string
	Title      string
	Metadata   DocumentMetadata
	Sections   []Section
	RawContent string
}

// Children returns the indexes of the sections directly nested under the
// section at index parent, in source order.
func (d *ParsedDocument) Children(parent int) []int {
	var out []int
	for i := range d.Sections {
		if d.Sections[i].Parent == parent {
			out = append(out, i)
		}
	}
	return out
}
