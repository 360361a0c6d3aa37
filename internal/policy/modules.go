package policy

import "fmt"

// Module is an optional feature grantable per client account.
type Module string

const (
	ModuleB2BNetworking         Module = "b2b_networking"
	ModuleParticipantManagement Module = "participant_management"
	ModuleQRCodeScanning        Module = "qr_code_scanning"
	ModuleAnalytics             Module = "analytics"
)

// AllModules lists every registered module in a stable order.
func AllModules() []Module {
	return []Module{
		ModuleB2BNetworking,
		ModuleParticipantManagement,
		ModuleQRCodeScanning,
		ModuleAnalytics,
	}
}

// Valid reports whether the module name is registered.
func (m Module) Valid() bool {
	switch m {
	case ModuleB2BNetworking, ModuleParticipantManagement, ModuleQRCodeScanning, ModuleAnalytics:
		return true
	}
	return false
}

// InvalidModuleError reports the first unrecognized name in a module set.
type InvalidModuleError struct {
	Name string
}

func (e *InvalidModuleError) Error() string {
	return fmt.Sprintf("policy: invalid module %q", e.Name)
}

// ValidateModuleSet checks every name against the registry, failing fast on
// the first unknown one. Callers must not persist any part of the set when an
// error is returned.
func ValidateModuleSet(names []string) error {
	for _, name := range names {
		if !Module(name).Valid() {
			return &InvalidModuleError{Name: name}
		}
	}
	return nil
}
