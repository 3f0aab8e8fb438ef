// Package consent contiene el motor de decisión de consent y el mutador
// de grants. El motor (Decide) es puro: recibe lo pedido, el grant vivo y
// la política del client, y retorna APPROVE o CONSENT_REQUIRED con el set
// faltante exacto. El mutador aplica el resultado sobre el repositorio.
package consent
