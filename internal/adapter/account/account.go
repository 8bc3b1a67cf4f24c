package account

import (
	"fmt"
	"os/user"
	"strconv"

	"github.com/justa/mapupload/internal/entity"
)

// Resolve maps an account name to the uid of that user and the gid of the same-named group.
func Resolve(name string) (entity.Ownership, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return entity.Ownership{}, fmt.Errorf("cannot find user %s: %w", name, err)
	}

	g, err := user.LookupGroup(name)
	if err != nil {
		return entity.Ownership{}, fmt.Errorf("cannot find group %s: %w", name, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return entity.Ownership{}, fmt.Errorf("non-numeric uid %q for %s", u.Uid, name)
	}

	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return entity.Ownership{}, fmt.Errorf("non-numeric gid %q for %s", g.Gid, name)
	}

	return entity.Ownership{UID: uid, GID: gid}, nil
}
