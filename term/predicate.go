package term

// Predicate is a name paired with an ordered argument sequence. The name is
// lowercased on construction (Unicode-correct, via golang.org/x/text/cases,
// not plain ASCII folding).
type Predicate struct {
	Name string
	Args []Term
}

// NewPredicate constructs a Predicate, lowercasing name.
func NewPredicate(name string, args ...Term) Predicate {
	return Predicate{Name: lowerer.String(name), Args: append([]Term(nil), args...)}
}

// Arity returns the number of arguments.
func (p Predicate) Arity() int { return len(p.Args) }

// Ground reports whether every argument is a constant.
func (p Predicate) Ground() bool {
	for _, a := range p.Args {
		if a.IsVariable() {
			return false
		}
	}
	return true
}

// Equal reports deep equality of name and arguments.
func (p Predicate) Equal(o Predicate) bool {
	if p.Name != o.Name || len(p.Args) != len(o.Args) {
		return false
	}
	for i := range p.Args {
		if !p.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// Less defines the total order on predicates: by Name, then by Args
// lexicographically (shorter argument list sorts first on a shared prefix).
func (p Predicate) Less(o Predicate) bool {
	if p.Name != o.Name {
		return p.Name < o.Name
	}
	n := len(p.Args)
	if len(o.Args) < n {
		n = len(o.Args)
	}
	for i := 0; i < n; i++ {
		if !p.Args[i].Equal(o.Args[i]) {
			return p.Args[i].Less(o.Args[i])
		}
	}
	return len(p.Args) < len(o.Args)
}

// rewriteArgs returns a copy of p with each argument replaced by fn(arg).
func (p Predicate) rewriteArgs(fn func(Term) Term) Predicate {
	args := make([]Term, len(p.Args))
	for i, a := range p.Args {
		args[i] = fn(a)
	}
	return Predicate{Name: p.Name, Args: args}
}
