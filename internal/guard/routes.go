package guard

import "consola.app/internal/auth"

// Route is one console screen. Permission lists the names that must all be
// held to enter it; an empty list only requires authentication.
type Route struct {
	Path       string
	Title      string
	Permission []string
	Public     bool
}

// DefaultRoutes is the console's screen table.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/", Title: "Iniciar sesión", Public: true},
		{Path: "/system/dashboard", Title: "Dashboard"},
		{Path: "/system/product", Title: "Productos"},
		{Path: "/system/material", Title: "Materiales"},
		{Path: "/system/proveedor", Title: "Proveedores"},
		{Path: "/system/color", Title: "Colores"},
		{Path: "/system/inventory", Title: "Inventario"},
		{Path: "/system/permission", Title: "Usuarios", Permission: Require(auth.PermManageUsers)},
		{Path: "/system/sucursal", Title: "Sucursales"},
		{Path: "/system/categoria", Title: "Categorías"},
		{Path: "/system/movement", Title: "Movimientos"},
		{Path: "/system/roles", Title: "Roles", Permission: Require(auth.PermManageUsers, auth.PermManageRoles)},
	}
}
