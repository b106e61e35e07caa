package authz

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryStoreSnapshotSwap(t *testing.T) {
	store := NewMemoryStore()
	store.SetGrants("r-1", Grant{Module: ModuleStudents, Action: ActionRead, Scope: "own"})
	store.AssignRole("u-1", "r-1")

	roles, err := store.RolesForUser(context.Background(), "u-1")
	if err != nil || len(roles) != 1 {
		t.Fatalf("RolesForUser: %v, %v", roles, err)
	}

	// Readers that captured grants before a swap must not observe the write.
	before, _ := store.Grants(context.Background(), "r-1")
	store.SetGrants("r-1", Grant{Module: ModuleStudents, Action: ActionRead, Scope: "full"})
	if before[0].Scope != "own" {
		t.Fatalf("earlier read mutated: %v", before)
	}
	after, _ := store.Grants(context.Background(), "r-1")
	if after[0].Scope != "full" {
		t.Fatalf("swap not visible: %v", after)
	}
}

func TestMemoryStoreConcurrentReadsAndWrites(t *testing.T) {
	store := NewMemoryStore()
	store.SetGrants("r-1",
		Grant{Module: ModuleStudents, Action: ActionRead, Scope: "own"},
		Grant{Module: ModuleGrades, Action: ActionRead, Scope: "own"},
	)
	store.AssignRole("u-1", "r-1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				grants, err := store.Grants(context.Background(), "r-1")
				if err != nil {
					t.Errorf("Grants: %v", err)
					return
				}
				// A snapshot is either the two-grant or three-grant state,
				// never a torn in-between.
				if len(grants) != 2 && len(grants) != 3 {
					t.Errorf("torn read: %d grants", len(grants))
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			store.SetGrants("r-1",
				Grant{Module: ModuleStudents, Action: ActionRead, Scope: "own"},
				Grant{Module: ModuleGrades, Action: ActionRead, Scope: "own"},
				Grant{Module: ModuleReports, Action: ActionRead, Scope: "full"},
			)
			store.SetGrants("r-1",
				Grant{Module: ModuleStudents, Action: ActionRead, Scope: "own"},
				Grant{Module: ModuleGrades, Action: ActionRead, Scope: "own"},
			)
		}
	}()
	wg.Wait()
}

func TestMemoryStoreRemoveUser(t *testing.T) {
	store := NewMemoryStore()
	store.AssignRole("u-1", "r-1")
	store.RemoveUser("u-1")
	roles, err := store.RolesForUser(context.Background(), "u-1")
	if err != nil || roles != nil {
		t.Fatalf("expected no roles, got %v, %v", roles, err)
	}
}
