package ledger

import (
	"context"
	"errors"
	"testing"
)

type captureRecorder struct {
	calls []struct {
		Role      Role
		AccountID int64
	}
}

func (c *captureRecorder) RecordCorrection(ctx context.Context, companyID int64, role Role, accountID int64, autoCreated bool) error {
	c.calls = append(c.calls, struct {
		Role      Role
		AccountID int64
	}{role, accountID})
	return nil
}

func resolveOnce(t *testing.T, state *memState, rv *Resolver, role Role, op OperationData) (Resolution, *captureRecorder, error) {
	t.Helper()
	rec := &captureRecorder{}
	var res Resolution
	repo := &memRepo{state: state}
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		var err error
		res, err = rv.Resolve(ctx, tx, rec, 1, role, op)
		return err
	})
	return res, rec, err
}

func TestResolvePrefersExistingMapping(t *testing.T) {
	state := newMemState()
	suppliers := state.addAccount(1, "42.1", "Proveedores", NatureLiability, true)
	state.addAccount(1, "42.9", "Otras cuentas por pagar", NatureLiability, true)
	state.mapRole(1, RoleSuppliers, suppliers.ID)

	res, rec, err := resolveOnce(t, state, &Resolver{}, RoleSuppliers, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Account.ID != suppliers.ID || res.Source != SourceMapping {
		t.Fatalf("got account %s via %s", res.Account.Code, res.Source)
	}
	if len(rec.calls) != 0 {
		t.Fatal("mapping hit must not record corrections")
	}
}

func TestResolveHeuristicExactCodeWins(t *testing.T) {
	state := newMemState()
	state.addAccount(1, "12.9", "Cobranza dudosa", NatureAsset, true)
	want := state.addAccount(1, "12.1", "Facturas por cobrar", NatureAsset, true)

	res, rec, err := resolveOnce(t, state, &Resolver{}, RoleReceivables, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Account.ID != want.ID {
		t.Fatalf("resolved %s, want %s", res.Account.Code, want.Code)
	}
	if res.Source != SourceHeuristic {
		t.Fatalf("source = %s", res.Source)
	}
	if len(rec.calls) != 1 || rec.calls[0].AccountID != want.ID {
		t.Fatalf("expected one self-heal for %d, got %+v", want.ID, rec.calls)
	}
}

func TestCodePrefixRequiresSegmentBoundary(t *testing.T) {
	if codePrefixMatch("10.15", "10.1") {
		t.Fatal("10.1 must not match 10.15")
	}
	if !codePrefixMatch("10.1.2", "10.1") {
		t.Fatal("10.1 must match 10.1.2")
	}
	if !codePrefixMatch("421", "42") {
		t.Fatal("42 must match 421")
	}
	if codePrefixMatch("42A", "42") {
		t.Fatal("42 must not match 42A")
	}
}

func TestResolveFoldsDiacriticsInNames(t *testing.T) {
	state := newMemState()
	want := state.addAccount(1, "40.11", "IGV Crédito Fiscal", NatureAsset, true)

	res, _, err := resolveOnce(t, state, &Resolver{}, RoleVATCredit, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Account.ID != want.ID {
		t.Fatalf("resolved %s, want %s", res.Account.Code, want.Code)
	}
}

func TestResolveNatureOnlyIsLowConfidence(t *testing.T) {
	state := newMemState()
	// No code or name evidence for SUPPLIERS, only a liability account.
	state.addAccount(1, "99.9", "Pasivo diverso", NatureLiability, true)

	res, _, err := resolveOnce(t, state, &Resolver{}, RoleSuppliers, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != SourceNatureOnly || !res.LowConfidence() {
		t.Fatalf("expected nature-only resolution, got %s", res.Source)
	}
}

func TestResolveStrictModeRejectsNatureOnly(t *testing.T) {
	state := newMemState()
	state.addAccount(1, "99.9", "Pasivo diverso", NatureLiability, true)

	_, _, err := resolveOnce(t, state, &Resolver{RequireConfidentMatch: true}, RoleSuppliers, nil)
	if !errors.Is(err, ErrUnmappedRole) {
		t.Fatalf("expected ErrUnmappedRole, got %v", err)
	}
}

func TestResolveNatureMismatchNeverChosen(t *testing.T) {
	state := newMemState()
	// Strong code evidence but wrong nature: must not be bound.
	state.addAccount(1, "42.1", "Proveedores", NatureAsset, true)

	_, _, err := resolveOnce(t, state, &Resolver{}, RoleSuppliers, nil)
	if !errors.Is(err, ErrUnmappedRole) {
		t.Fatalf("expected ErrUnmappedRole, got %v", err)
	}
}

func TestResolveSelfHealsInvalidMapping(t *testing.T) {
	state := newMemState()
	wrong := state.addAccount(1, "12.1", "Clientes", NatureAsset, true)
	right := state.addAccount(1, "42.1", "Proveedores", NatureLiability, true)
	state.mapRole(1, RoleSuppliers, wrong.ID)

	res, rec, err := resolveOnce(t, state, &Resolver{}, RoleSuppliers, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Account.ID != right.ID {
		t.Fatalf("resolved %s, want %s", res.Account.Code, right.Code)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected one correction, got %d", len(rec.calls))
	}
}

func TestResolveInvalidMappingWithoutAlternative(t *testing.T) {
	state := newMemState()
	wrong := state.addAccount(1, "12.1", "Clientes", NatureAsset, true)
	state.mapRole(1, RoleSuppliers, wrong.ID)

	_, _, err := resolveOnce(t, state, &Resolver{}, RoleSuppliers, nil)
	var invalid *InvalidMappingError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidMappingError, got %v", err)
	}
	if invalid.WantNature != NatureLiability || invalid.GotNature != NatureAsset {
		t.Fatalf("unexpected context: %+v", invalid)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	state := newMemState()
	want := state.addAccount(1, "42.1", "Proveedores", NatureLiability, true)
	repo := &memRepo{state: state}
	rv := &Resolver{}

	resolve := func() Resolution {
		var res Resolution
		err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
			var err error
			res, err = rv.Resolve(ctx, tx, &txCorrections{tx: tx}, 1, RoleSuppliers, nil)
			return err
		})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		return res
	}

	first := resolve()
	scansAfterFirst := repo.state.listActiveCalls
	second := resolve()

	if first.Account.ID != want.ID || second.Account.ID != first.Account.ID {
		t.Fatal("resolutions disagree")
	}
	if second.Source != SourceMapping {
		t.Fatalf("second resolve source = %s, want mapping reuse", second.Source)
	}
	if repo.state.listActiveCalls != scansAfterFirst {
		t.Fatal("second resolve re-ran the heuristic scan")
	}
	if len(repo.state.mappings) != 1 {
		t.Fatalf("expected exactly one mapping row, got %d", len(repo.state.mappings))
	}
}

func TestResolveOperationOverride(t *testing.T) {
	state := newMemState()
	mapped := state.addAccount(1, "20", "Mercaderías", NatureAsset, true)
	pinned := state.addAccount(1, "21", "Productos terminados", NatureAsset, true)
	state.mapRole(1, RoleInventory, mapped.ID)

	op := OperationData{"account_code:inventory": StringValue("21")}
	res, rec, err := resolveOnce(t, state, &Resolver{}, RoleInventory, op)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Account.ID != pinned.ID || res.Source != SourceOverride {
		t.Fatalf("got %s via %s, want override to 21", res.Account.Code, res.Source)
	}
	if len(rec.calls) != 0 {
		t.Fatal("override must not touch mappings")
	}
}

func TestResolveOverrideIgnoredForNonOverridableRole(t *testing.T) {
	state := newMemState()
	mapped := state.addAccount(1, "42.1", "Proveedores", NatureLiability, true)
	state.addAccount(1, "46", "Cuentas por pagar diversas", NatureLiability, true)
	state.mapRole(1, RoleSuppliers, mapped.ID)

	op := OperationData{"account_code:suppliers": StringValue("46")}
	res, _, err := resolveOnce(t, state, &Resolver{}, RoleSuppliers, op)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Account.ID != mapped.ID {
		t.Fatalf("override applied to non-overridable role: %s", res.Account.Code)
	}
}
