// Package scope implementa los sets de scopes normalizados del motor de consent.
//
// Un Set es una colección de scope tokens sin duplicados. Los tokens son
// opacos: no se asume estructura interna más allá de igualdad de strings.
// Union y Diff son las únicas operaciones del flujo normal; ambas tratan
// el Set como inmutable y devuelven uno nuevo.
//
// Los scopes viajan por el wire como strings separados por espacios
// (forma OAuth2); Parse/String convierten SOLO en el boundary. Ninguna
// capa interna maneja scopes como string crudo.
package scope

import (
	"sort"
	"strings"
)

// Set es un conjunto de scope tokens sin duplicados.
// El valor zero (nil) es un set vacío utilizable para lectura.
type Set map[string]struct{}

// NewSet crea un Set a partir de tokens, descartando duplicados y vacíos.
func NewSet(tokens ...string) Set {
	s := make(Set, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			s[t] = struct{}{}
		}
	}
	return s
}

// Parse convierte la forma wire (tokens separados por espacios) en un Set.
func Parse(raw string) Set {
	return NewSet(strings.Fields(raw)...)
}

// Contains verifica si el token pertenece al set.
func (s Set) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

// ContainsAll verifica si todos los tokens de other están presentes.
func (s Set) ContainsAll(other Set) bool {
	for t := range other {
		if !s.Contains(t) {
			return false
		}
	}
	return true
}

// IsEmpty verifica si el set no tiene tokens.
func (s Set) IsEmpty() bool { return len(s) == 0 }

// Len retorna la cantidad de tokens.
func (s Set) Len() int { return len(s) }

// Union retorna un set nuevo con los tokens de ambos.
// Idempotente y conmutativa; nunca muta los operandos.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for t := range s {
		out[t] = struct{}{}
	}
	for t := range other {
		out[t] = struct{}{}
	}
	return out
}

// Diff retorna los tokens de s que NO están en other.
// Es el primitivo de "qué falta por aprobar": Diff(requested, granted).
func (s Set) Diff(other Set) Set {
	out := make(Set)
	for t := range s {
		if !other.Contains(t) {
			out[t] = struct{}{}
		}
	}
	return out
}

// Equal verifica igualdad de sets.
func (s Set) Equal(other Set) bool {
	return len(s) == len(other) && s.ContainsAll(other)
}

// Clone retorna una copia independiente.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// Sorted retorna los tokens ordenados alfabéticamente.
// Orden estable para persistencia, logs y respuestas HTTP.
func (s Set) Sorted() []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// String retorna la forma wire (tokens ordenados separados por espacio).
func (s Set) String() string {
	return strings.Join(s.Sorted(), " ")
}
