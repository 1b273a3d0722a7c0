package schema

// Sample builds the starter schema given to freshly provisioned accounts.
func Sample(name string) *Schema {
	if name == "" {
		name = "My Schema"
	}
	s := New(name)

	t1, _ := s.CreateTable("My Table")
	_, _ = s.CreateColumn(t1.ID, "A", "Double", "")
	_, _ = s.CreateColumn(t1.ID, "B", "Double", "")
	_, _ = s.CreateColumn(t1.ID, "Total", "Double", "sys.Sum")

	t2, _ := s.CreateTable("My Table 2")
	_, _ = s.CreateColumn(t2.ID, "D", "Double", "")
	_, _ = s.CreateColumn(t2.ID, "Largest", "Double", "sys.Max")

	return s
}
