package scope

// ResourceMap particiona scopes por resource indicator (RFC 8707).
// Un token bajo el indicator A nunca cuenta como presente bajo B,
// aunque el string coincida. Ausencia de key = cero scopes para ese resource.
type ResourceMap map[string]Set

// NewResourceMap crea un ResourceMap a partir de slices por resource,
// descartando resources sin scopes.
func NewResourceMap(in map[string][]string) ResourceMap {
	if len(in) == 0 {
		return nil
	}
	out := make(ResourceMap, len(in))
	for res, tokens := range in {
		if s := NewSet(tokens...); !s.IsEmpty() {
			out[res] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Get retorna el Set del resource (vacío si no existe).
func (m ResourceMap) Get(resource string) Set {
	return m[resource]
}

// IsEmpty verifica si no hay scopes bajo ningún resource.
func (m ResourceMap) IsEmpty() bool {
	for _, s := range m {
		if !s.IsEmpty() {
			return false
		}
	}
	return true
}

// Union retorna un map nuevo con la unión por resource indicator.
// La unión se computa por indicator de forma independiente.
func (m ResourceMap) Union(other ResourceMap) ResourceMap {
	out := make(ResourceMap, len(m)+len(other))
	for res, s := range m {
		out[res] = s.Clone()
	}
	for res, s := range other {
		if existing, ok := out[res]; ok {
			out[res] = existing.Union(s)
		} else {
			out[res] = s.Clone()
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Diff retorna, por resource indicator, los tokens de m ausentes en other.
// Resources completamente cubiertos no aparecen en el resultado: un request
// que solo necesita scopes nuevos bajo A no arrastra nada de B.
func (m ResourceMap) Diff(other ResourceMap) ResourceMap {
	out := make(ResourceMap)
	for res, requested := range m {
		if missing := requested.Diff(other.Get(res)); !missing.IsEmpty() {
			out[res] = missing
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Equal verifica igualdad por resource.
func (m ResourceMap) Equal(other ResourceMap) bool {
	if len(m) != len(other) {
		return false
	}
	for res, s := range m {
		if !s.Equal(other.Get(res)) {
			return false
		}
	}
	return true
}

// Clone retorna una copia independiente (sets incluidos).
func (m ResourceMap) Clone() ResourceMap {
	if m == nil {
		return nil
	}
	out := make(ResourceMap, len(m))
	for res, s := range m {
		out[res] = s.Clone()
	}
	return out
}

// ToStrings serializa a la forma boundary (slices ordenados por resource).
func (m ResourceMap) ToStrings() map[string][]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string][]string, len(m))
	for res, s := range m {
		out[res] = s.Sorted()
	}
	return out
}
