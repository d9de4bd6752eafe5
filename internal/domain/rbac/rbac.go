// Пакет rbac — роли и scopes доступа к каталогу.
// Пользователь получает роль из групп IdP (admin, readonly),
// сервисный аккаунт — scopes из токена (catalog:read, catalog:write).
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleReadonly = "readonly"
	RoleAdmin    = "admin"
)

// Scopes сервисных аккаунтов.
const (
	ScopeCatalogRead  = "catalog:read"
	ScopeCatalogWrite = "catalog:write"
)

// Access — уровень доступа, требуемый операцией.
type Access int

const (
	// AccessRead — чтение каталога и истории загрузок.
	AccessRead Access = iota
	// AccessWrite — изменение каталога, загрузка файлов, запуск проверки.
	AccessWrite
)

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	RoleReadonly: 1,
	RoleAdmin:    2,
}

// RolesFor возвращает роли, дающие указанный доступ.
func RolesFor(a Access) []string {
	if a == AccessWrite {
		return []string{RoleAdmin}
	}
	return []string{RoleAdmin, RoleReadonly}
}

// ScopesFor возвращает scopes, дающие указанный доступ.
// catalog:write включает чтение.
func ScopesFor(a Access) []string {
	if a == AccessWrite {
		return []string{ScopeCatalogWrite}
	}
	return []string{ScopeCatalogRead, ScopeCatalogWrite}
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст — возвращает пустую строку.
func HighestRole(roles []string) string {
	highest := ""
	for _, r := range roles {
		if roleWeight[r] > roleWeight[highest] {
			highest = r
		}
	}
	return highest
}

// MapGroupsToRole определяет роль пользователя по группам IdP.
// Возвращает максимальную роль из всех совпадений или пустую строку.
func MapGroupsToRole(groups []string, adminGroups, readonlyGroups []string) string {
	adminSet := toSet(adminGroups)
	readonlySet := toSet(readonlyGroups)

	var roles []string
	for _, g := range groups {
		if adminSet[g] {
			roles = append(roles, RoleAdmin)
		}
		if readonlySet[g] {
			roles = append(roles, RoleReadonly)
		}
	}
	return HighestRole(roles)
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
