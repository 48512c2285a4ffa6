package badger

// Skeleton indexes a flat bone list. Bones reference parents by name only,
// children lists are built once from the arena.
type Skeleton struct {
	Bones    []Bone
	index    map[string]int
	parents  []int
	children [][]int
	roots    []int
}

// NewSkeleton requires unique names and every parent to appear before its children.
func NewSkeleton(bones []Bone) (*Skeleton, error) {
	s := &Skeleton{
		Bones:    bones,
		index:    make(map[string]int, len(bones)),
		parents:  make([]int, len(bones)),
		children: make([][]int, len(bones)),
	}
	for i := range bones {
		b := &bones[i]
		if _, dup := s.index[b.Name]; dup {
			return nil, &SchemaError{Document: "skeleton", Field: b.Name, Reason: "duplicate bone name"}
		}
		if b.Parent == "" {
			s.parents[i] = -1
			s.roots = append(s.roots, i)
		} else {
			parent, ok := s.index[b.Parent]
			if !ok {
				return nil, &MissingParentError{Bone: b.Name, Parent: b.Parent}
			}
			s.parents[i] = parent
			s.children[parent] = append(s.children[parent], i)
		}
		s.index[b.Name] = i
	}
	return s, nil
}

func (s *Skeleton) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

func (s *Skeleton) Bone(name string) *Bone {
	if i, ok := s.index[name]; ok {
		return &s.Bones[i]
	}
	return nil
}

// Parent returns -1 for roots
func (s *Skeleton) Parent(i int) int     { return s.parents[i] }
func (s *Skeleton) Children(i int) []int { return s.children[i] }
func (s *Skeleton) Roots() []int         { return s.roots }

// Walk visits bones parent first, siblings in declaration order.
func (s *Skeleton) Walk(visit func(i int) error) error {
	stack := make([]int, 0, len(s.Bones))
	for i := len(s.roots) - 1; i >= 0; i-- {
		stack = append(stack, s.roots[i])
	}
	for len(stack) != 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := visit(i); err != nil {
			return err
		}
		children := s.children[i]
		for j := len(children) - 1; j >= 0; j-- {
			stack = append(stack, children[j])
		}
	}
	return nil
}
