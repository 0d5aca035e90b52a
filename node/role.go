package node

import (
	"errors"
	"fmt"
	"strings"
)

// Role selects what a node does in the network. A validator keeps wallet
// colors and votes; a builder additionally assembles candidate blocks; a
// coordinator hosts the round state machine and drives its transitions.
type Role uint8

const (
	RoleValidator Role = iota
	RoleBuilder
	RoleCoordinator
)

var ErrUnknownRole = errors.New("node: unknown role")

func (r Role) String() string {
	switch r {
	case RoleValidator:
		return "validator"
	case RoleBuilder:
		return "builder"
	case RoleCoordinator:
		return "coordinator"
	}
	return "unknown"
}

// ParseRole parses a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "validator":
		return RoleValidator, nil
	case "builder":
		return RoleBuilder, nil
	case "coordinator":
		return RoleCoordinator, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// CanBuild reports whether the role assembles block proposals.
func (r Role) CanBuild() bool { return r == RoleBuilder }

// CanCoordinate reports whether the role hosts the round engine loop.
func (r Role) CanCoordinate() bool { return r == RoleCoordinator }
