// Package scope implements the resource store at the heart of wirecell: a
// dual-indexed mapping from type keys and label keys to resources, with
// clash detection, lazy resolvers and nested child scopes that fall back to
// their parent. It also defines the Requirement protocol that the engine
// packages resolve against a scope.
package scope
