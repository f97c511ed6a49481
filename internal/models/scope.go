package models

// Scope is the resolved authorization context of a request: either root
// (every namespace) or bound to exactly one namespace.
type Scope struct {
	Namespace string
	Root      bool
}

// RootScope grants unrestricted access.
func RootScope() Scope {
	return Scope{Root: true}
}

// NamespaceScope restricts access to processes tagged with ns.
func NamespaceScope(ns string) Scope {
	return Scope{Namespace: ns}
}

// Allows reports whether a process tagged with ns is visible in this scope.
// A namespace scope never sees untagged processes.
func (s Scope) Allows(ns string) bool {
	return s.Root || (s.Namespace != "" && s.Namespace == ns)
}

// Actor names the scope for audit records.
func (s Scope) Actor() string {
	if s.Root {
		return "root"
	}
	return "namespace:" + s.Namespace
}
