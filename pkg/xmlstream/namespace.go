package xmlstream

type nsScope struct {
	decls []NamespaceDecl
}

// nsStack tracks namespace declarations per open element. It implements
// NamespaceContext for the innermost scope.
type nsStack struct {
	scopes []nsScope
}

func (s *nsStack) push(decls []NamespaceDecl) {
	s.scopes = append(s.scopes, nsScope{decls: decls})
}

func (s *nsStack) pop() {
	if len(s.scopes) == 0 {
		return
	}
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *nsStack) declare(prefix, uri string) {
	if len(s.scopes) == 0 {
		s.push(nil)
	}
	top := &s.scopes[len(s.scopes)-1]
	top.decls = append(top.decls, NamespaceDecl{Prefix: prefix, URI: uri})
}

func (s *nsStack) LookupURI(prefix string) (string, bool) {
	switch prefix {
	case "xml":
		return XMLNamespace, true
	case "xmlns":
		return XMLNSNamespace, true
	}
	for i := len(s.scopes) - 1; i >= 0; i-- {
		decls := s.scopes[i].decls
		for j := len(decls) - 1; j >= 0; j-- {
			if decls[j].Prefix == prefix {
				return decls[j].URI, true
			}
		}
	}
	if prefix == "" {
		return "", true
	}
	return "", false
}

func (s *nsStack) LookupPrefix(uri string) (string, bool) {
	for _, p := range s.Prefixes(uri) {
		return p, true
	}
	return "", false
}

func (s *nsStack) Prefixes(uri string) []string {
	switch uri {
	case XMLNamespace:
		return []string{"xml"}
	case XMLNSNamespace:
		return []string{"xmlns"}
	}
	var out []string
	seen := make(map[string]bool)
	for i := len(s.scopes) - 1; i >= 0; i-- {
		decls := s.scopes[i].decls
		for j := len(decls) - 1; j >= 0; j-- {
			d := decls[j]
			if seen[d.Prefix] {
				continue
			}
			seen[d.Prefix] = true
			if d.URI == uri {
				out = append(out, d.Prefix)
			}
		}
	}
	return out
}

// snapshot copies the bindings in scope so they survive later pops
func (s *nsStack) snapshot() NamespaceContext {
	cp := &nsStack{scopes: make([]nsScope, len(s.scopes))}
	copy(cp.scopes, s.scopes)
	return cp
}

type emptyContext struct{}

// EmptyNamespaceContext binds nothing beyond the xml and xmlns prefixes
var EmptyNamespaceContext NamespaceContext = emptyContext{}

func (emptyContext) LookupURI(prefix string) (string, bool) {
	return (&nsStack{}).LookupURI(prefix)
}

func (emptyContext) LookupPrefix(uri string) (string, bool) {
	return (&nsStack{}).LookupPrefix(uri)
}

func (emptyContext) Prefixes(uri string) []string {
	return (&nsStack{}).Prefixes(uri)
}
