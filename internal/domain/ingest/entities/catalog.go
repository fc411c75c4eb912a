package entities

import (
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/repository"
)

// Members is the member registry export (socios).
var Members = register(&Mapper{
	Name:  "partners",
	Table: "socios",
	Fields: []Field{
		{"Id Socio", "id_socio", text},
		{"Id Socio Externo", "id_socio_externo", text},
		{"Socio", "socio", text},
		{"Fecha de nacimiento", "fecha_de_nacimiento", date},
		{"Nif", "nif", upperText},
		{"email", "email", lowerText},
		{"Móvil", "movil", text},
		{"Dirección", "direccion", text},
		{"Ciudad", "ciudad", text},
		{"Código postal", "codigo_postal", digitsNumber},
		{"Fecha de Alta", "fecha_de_alta", date},
		{"Fecha de baja", "fecha_de_baja", date},
		{"Sexo", "sexo", text},
		{"Grupo Socio", "grupo_socio", text},
		{"Perfil Socio", "perfil_socio", text},
	},
	NaturalKey:    []string{"id_socio"},
	WindowColumns: []string{"fecha_de_alta"},
	signature:     memberSignature,
}, "members")

// Subscriptions is the subscriptions export (suscripciones).
var Subscriptions = register(&Mapper{
	Name:  "subscriptions",
	Table: "suscripciones",
	Fields: []Field{
		{"Nombre", "nombre", text},
		{"Apellidos", "apellidos", text},
		{"Producto", "producto", text},
		{"Precio", "precio", money},
		{"Método de pago", "metodo_de_pago", text},
		{"Periodicidad", "periodicidad", text},
		{"Sesiones disponibles", "sesiones_disponibles", text},
		{"Fecha de inicio", "fecha_de_inicio", date},
		{"Próximo pago", "proximo_pago", date},
		{"Fecha de fin", "fecha_de_fin", date},
		{"Estado", "estado", lowerText},
		{"Empleado", "empleado", text},
		{"Id. Suscripción", "id_suscripcion", text},
	},
	NaturalKey:    []string{"id_suscripcion"},
	WindowColumns: []string{"fecha_de_inicio"},
	signature: func(r repository.Row) string {
		return hash(
			sigText(r, "id_suscripcion"),
			sigText(r, "nombre"),
			sigText(r, "apellidos"),
			sigText(r, "producto"),
			sigDate(r, "fecha_de_inicio"),
		)
	},
})

// Products is the product catalogue export (productos). It carries no dates and is never windowed.
var Products = register(&Mapper{
	Name:  "products",
	Table: "productos",
	Fields: []Field{
		{"Producto", "producto", text},
		{"Precio", "precio", money},
		{"Tipo", "tipo", lowerText},
		{"Pago", "pago", text},
		{"Características", "caracteristicas", text},
		{"Suscritos", "suscritos", text},
		{"Stock", "stock", text},
		{"Disponibilidad", "disponibilidad", lowerText},
	},
	NaturalKey: []string{"producto", "tipo"},
	signature: func(r repository.Row) string {
		return hash(
			sigText(r, "producto"),
			sigText(r, "tipo"),
			sigMoney(r, "precio"),
			sigText(r, "pago"),
		)
	},
})

// Activities is the class attendance log (actividades).
var Activities = register(&Mapper{
	Name:  "activities",
	Table: "actividades",
	Fields: []Field{
		{"Img", "img", text},
		{"Nombre", "nombre", text},
		{"Apellidos", "apellidos", text},
		{"Fecha registro", "fecha_registro", date},
		{"Evento", "evento", text},
		{"Fecha evento", "fecha_evento", date},
		{"Canje", "canje", text},
		{"Producto", "producto", text},
		{"Estado", "estado", lowerText},
		{"Id. Suscripción", "id_suscripcion", text},
	},
	WindowColumns: []string{"fecha_evento", "fecha_registro"},
	signature: func(r repository.Row) string {
		return hash(
			sigText(r, "id_suscripcion"),
			sigText(r, "nombre"),
			sigText(r, "apellidos"),
			sigText(r, "evento"),
			sigDate(r, "fecha_evento"),
			sigText(r, "producto"),
		)
	},
})

// memberSignature falls back to name and birth date when the export carries no identifier at all.
func memberSignature(r repository.Row) string {
	parts := []string{
		sigText(r, "id_socio"),
		sigText(r, "id_socio_externo"),
		sigText(r, "email"),
		sigText(r, "nif"),
	}
	for _, p := range parts {
		if p != "" {
			return hash(parts...)
		}
	}
	return hash(append(parts, sigText(r, "socio"), sigDate(r, "fecha_de_nacimiento"))...)
}
