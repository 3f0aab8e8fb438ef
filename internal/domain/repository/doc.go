// Package repository define las entidades de dominio y los contratos de
// persistencia del motor de consent.
//
// El Grant es el único recurso mutable compartido. Se muta exclusivamente
// vía CreateOrMerge (union-merge monotónico) y Delete (revocación); ningún
// otro componente escribe por fuera de ese contrato. Las implementaciones
// viven en internal/store/adapters (memory, fs, postgres).
package repository
