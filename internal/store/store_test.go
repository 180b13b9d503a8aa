package store

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	// Create temp file for test database
	f, err := os.CreateTemp("", "tokenmart-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	dbPath := f.Name()
	f.Close()

	store, err := New(dbPath, DefaultConfig())
	if err != nil {
		os.Remove(dbPath)
		t.Fatalf("failed to create store: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.Remove(dbPath)
	}

	return store, cleanup
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// openSellOrder inserts an open sell order for the maker, escrowing
// the offered tokens.
func openSellOrder(t *testing.T, s *Store, maker *User, id, token, amount, price string) *Order {
	t.Helper()
	o := &Order{
		ID:              id,
		Type:            OrderTypeSell,
		TokenSymbol:     token,
		PairSymbol:      s.ReferenceSymbol(),
		Amount:          dec(amount),
		Price:           dec(price),
		TotalValue:      dec(amount).Mul(dec(price)),
		CreatorID:       maker.ID,
		CreatorUsername: maker.Username,
		Status:          OrderStatusOpen,
		CreatedAt:       time.Now(),
	}
	if err := s.InsertOrderWithHold(o); err != nil {
		t.Fatalf("InsertOrderWithHold failed: %v", err)
	}
	return o
}

// ==================== USER TESTS ====================

func TestCreateUser(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	user, err := store.CreateUser("alice", "password123")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if user.ID == "" {
		t.Error("expected user ID to be set")
	}
	if user.Username != "alice" {
		t.Errorf("expected username 'alice', got '%s'", user.Username)
	}
	if user.PasswordHash == "" {
		t.Error("expected password hash to be set")
	}
	if user.PasswordHash == "password123" {
		t.Error("password should be hashed, not stored in plain text")
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.CreateUser("alice", "password123")
	if err != nil {
		t.Fatalf("first CreateUser failed: %v", err)
	}

	_, err = store.CreateUser("alice", "different")
	if err != ErrUserExists {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
}

func TestCreateUserWelcomeGrant(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	user, err := store.CreateUser("alice", "password123")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	b, err := store.GetBalance(user.ID, store.ReferenceSymbol())
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !b.Available.Equal(store.StartingGrant()) {
		t.Errorf("expected available %s, got %s", store.StartingGrant(), b.Available)
	}
	if !b.Locked.IsZero() {
		t.Errorf("expected no locked funds, got %s", b.Locked)
	}

	// The grant shows up on the ledger
	txs, err := store.TransactionsByUser(user.ID, 10)
	if err != nil {
		t.Fatalf("TransactionsByUser failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(txs))
	}
	if txs[0].Kind != TxKindGrant {
		t.Errorf("expected grant entry, got %s", txs[0].Kind)
	}
	if !txs[0].Amount.Equal(store.StartingGrant()) {
		t.Errorf("expected grant of %s, got %s", store.StartingGrant(), txs[0].Amount)
	}

	// Reference supply grows with each grant
	ref, err := store.GetToken(store.ReferenceSymbol())
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if !ref.TotalSupply.Equal(store.StartingGrant()) {
		t.Errorf("expected reference supply %s, got %s", store.StartingGrant(), ref.TotalSupply)
	}
}

func TestAuthenticateUser(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.CreateUser("alice", "password123")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	// Successful auth
	user, err := store.AuthenticateUser("alice", "password123")
	if err != nil {
		t.Fatalf("AuthenticateUser failed: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("expected username 'alice', got '%s'", user.Username)
	}

	// Wrong password
	_, err = store.AuthenticateUser("alice", "wrongpassword")
	if err != ErrInvalidPassword {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}

	// User not found
	_, err = store.AuthenticateUser("bob", "password123")
	if err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetUserByID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	created, err := store.CreateUser("alice", "password123")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	user, err := store.GetUserByID(created.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("expected username 'alice', got '%s'", user.Username)
	}

	// Not found
	_, err = store.GetUserByID("nonexistent")
	if err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	created, err := store.CreateUser("alice", "password123")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	user, err := store.GetUserByUsername("alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("expected ID '%s', got '%s'", created.ID, user.ID)
	}

	_, err = store.GetUserByUsername("nobody")
	if err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

// ==================== TOKEN TESTS ====================

func TestReferenceTokenExists(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ref, err := store.GetToken(store.ReferenceSymbol())
	if err != nil {
		t.Fatalf("expected reference token after New, got %v", err)
	}
	if ref.CreatorID != SystemUser {
		t.Errorf("expected system creator, got %s", ref.CreatorID)
	}
}

func TestMintToken(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	user, _ := store.CreateUser("alice", "pass")

	tok, err := store.MintToken("WID", "Widget Works", dec("100"), user.ID, user.Username)
	if err != nil {
		t.Fatalf("MintToken failed: %v", err)
	}
	if tok.Symbol != "WID" {
		t.Errorf("expected symbol WID, got %s", tok.Symbol)
	}
	if !tok.TotalSupply.Equal(dec("100")) {
		t.Errorf("expected supply 100, got %s", tok.TotalSupply)
	}

	// Full supply lands in the creator's available balance
	b, _ := store.GetBalance(user.ID, "WID")
	if !b.Available.Equal(dec("100")) {
		t.Errorf("expected available 100, got %s", b.Available)
	}

	// Mint is on the ledger
	txs, _ := store.TransactionsByUser(user.ID, 10)
	var minted bool
	for _, rec := range txs {
		if rec.Kind == TxKindMint && rec.TokenSymbol == "WID" {
			minted = true
		}
	}
	if !minted {
		t.Error("expected a mint ledger entry for WID")
	}
}

func TestMintTokenDuplicate(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	user, _ := store.CreateUser("alice", "pass")

	_, err := store.MintToken("WID", "Widget Works", dec("100"), user.ID, user.Username)
	if err != nil {
		t.Fatalf("first MintToken failed: %v", err)
	}

	_, err = store.MintToken("WID", "Widget Clone", dec("5"), user.ID, user.Username)
	if err != ErrTokenExists {
		t.Errorf("expected ErrTokenExists, got %v", err)
	}

	// The failed mint must not credit anything
	b, _ := store.GetBalance(user.ID, "WID")
	if !b.Available.Equal(dec("100")) {
		t.Errorf("expected available unchanged at 100, got %s", b.Available)
	}
}

func TestGetTokenNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.GetToken("NOPE")
	if err != ErrTokenNotFound {
		t.Errorf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestListTokens(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	user, _ := store.CreateUser("alice", "pass")
	store.MintToken("WID", "Widget Works", dec("100"), user.ID, user.Username)
	store.MintToken("GAD", "Gadget Labs", dec("50"), user.ID, user.Username)

	tokens, err := store.ListTokens()
	if err != nil {
		t.Fatalf("ListTokens failed: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	if tokens[0].Symbol != store.ReferenceSymbol() {
		t.Errorf("expected reference token first, got %s", tokens[0].Symbol)
	}
}

// ==================== BALANCE TESTS ====================

func TestGetBalanceUnknownIsZero(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	user, _ := store.CreateUser("alice", "pass")

	b, err := store.GetBalance(user.ID, "GHOST")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !b.Available.IsZero() || !b.Locked.IsZero() {
		t.Errorf("expected zero balance, got %s available / %s locked", b.Available, b.Locked)
	}
}

func TestTransferAvailable(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	bob, _ := store.CreateUser("bob", "pass")

	rec, err := store.TransferAvailable(alice.ID, alice.Username, bob.ID, bob.Username,
		store.ReferenceSymbol(), dec("250"), "rent")
	if err != nil {
		t.Fatalf("TransferAvailable failed: %v", err)
	}
	if rec.Kind != TxKindTransfer {
		t.Errorf("expected transfer entry, got %s", rec.Kind)
	}

	ab, _ := store.GetBalance(alice.ID, store.ReferenceSymbol())
	bb, _ := store.GetBalance(bob.ID, store.ReferenceSymbol())
	if !ab.Available.Equal(dec("750")) {
		t.Errorf("expected alice at 750, got %s", ab.Available)
	}
	if !bb.Available.Equal(dec("1250")) {
		t.Errorf("expected bob at 1250, got %s", bb.Available)
	}
}

func TestTransferAvailableInsufficient(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	bob, _ := store.CreateUser("bob", "pass")

	_, err := store.TransferAvailable(alice.ID, alice.Username, bob.ID, bob.Username,
		store.ReferenceSymbol(), dec("1000.01"), "")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}

	// Nothing moved
	ab, _ := store.GetBalance(alice.ID, store.ReferenceSymbol())
	if !ab.Available.Equal(dec("1000")) {
		t.Errorf("expected alice untouched at 1000, got %s", ab.Available)
	}
}

func TestTransferAvailableToSelf(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")

	_, err := store.TransferAvailable(alice.ID, alice.Username, alice.ID, alice.Username,
		store.ReferenceSymbol(), dec("10"), "")
	if err != ErrSameUser {
		t.Errorf("expected ErrSameUser, got %v", err)
	}
}

// ==================== ORDER TESTS ====================

func TestInsertOrderWithHold(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	store.MintToken("WID", "Widget Works", dec("100"), alice.ID, alice.Username)

	o := openSellOrder(t, store, alice, "order-1", "WID", "10", "5")

	b, _ := store.GetBalance(alice.ID, "WID")
	if !b.Available.Equal(dec("90")) {
		t.Errorf("expected available 90 after escrow, got %s", b.Available)
	}
	if !b.Locked.Equal(dec("10")) {
		t.Errorf("expected locked 10 after escrow, got %s", b.Locked)
	}

	got, err := store.GetOrder(o.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if got.Status != OrderStatusOpen {
		t.Errorf("expected open order, got %s", got.Status)
	}
	if !got.TotalValue.Equal(dec("50")) {
		t.Errorf("expected total value 50, got %s", got.TotalValue)
	}
}

func TestInsertOrderWithHoldInsufficient(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	store.MintToken("WID", "Widget Works", dec("5"), alice.ID, alice.Username)

	o := &Order{
		ID:              "order-1",
		Type:            OrderTypeSell,
		TokenSymbol:     "WID",
		PairSymbol:      store.ReferenceSymbol(),
		Amount:          dec("10"),
		Price:           dec("5"),
		TotalValue:      dec("50"),
		CreatorID:       alice.ID,
		CreatorUsername: alice.Username,
		Status:          OrderStatusOpen,
		CreatedAt:       time.Now(),
	}
	err := store.InsertOrderWithHold(o)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// The rejected order must not exist
	if _, err := store.GetOrder("order-1"); err != ErrOrderNotFound {
		t.Errorf("expected ErrOrderNotFound for rejected order, got %v", err)
	}

	// And nothing was escrowed
	b, _ := store.GetBalance(alice.ID, "WID")
	if !b.Locked.IsZero() {
		t.Errorf("expected no locked funds, got %s", b.Locked)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.GetOrder("missing")
	if err != ErrOrderNotFound {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestSettleFillSellOrder(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	bob, _ := store.CreateUser("bob", "pass")
	store.MintToken("WID", "Widget Works", dec("100"), alice.ID, alice.Username)

	o := openSellOrder(t, store, alice, "order-1", "WID", "10", "5")

	rec, err := store.SettleFill(o.ID, bob.ID, bob.Username)
	if err != nil {
		t.Fatalf("SettleFill failed: %v", err)
	}

	// Tokens flow maker -> taker on a sell
	if rec.FromID != alice.ID || rec.ToID != bob.ID {
		t.Errorf("expected trade from alice to bob, got %s -> %s", rec.FromUsername, rec.ToUsername)
	}
	if !rec.Amount.Equal(dec("10")) {
		t.Errorf("expected trade amount 10, got %s", rec.Amount)
	}
	if !rec.TotalValue.Equal(dec("50")) {
		t.Errorf("expected trade value 50, got %s", rec.TotalValue)
	}

	// All four legs moved
	aliceWID, _ := store.GetBalance(alice.ID, "WID")
	aliceINF, _ := store.GetBalance(alice.ID, store.ReferenceSymbol())
	bobWID, _ := store.GetBalance(bob.ID, "WID")
	bobINF, _ := store.GetBalance(bob.ID, store.ReferenceSymbol())

	if !aliceWID.Available.Equal(dec("90")) || !aliceWID.Locked.IsZero() {
		t.Errorf("expected alice WID 90/0, got %s/%s", aliceWID.Available, aliceWID.Locked)
	}
	if !aliceINF.Available.Equal(dec("1050")) {
		t.Errorf("expected alice INF 1050, got %s", aliceINF.Available)
	}
	if !bobWID.Available.Equal(dec("10")) {
		t.Errorf("expected bob WID 10, got %s", bobWID.Available)
	}
	if !bobINF.Available.Equal(dec("950")) {
		t.Errorf("expected bob INF 950, got %s", bobINF.Available)
	}

	// Order is filled with a fill timestamp and the full amount recorded
	got, _ := store.GetOrder(o.ID)
	if got.Status != OrderStatusFilled {
		t.Errorf("expected filled order, got %s", got.Status)
	}
	if !got.FilledAmount.Equal(got.Amount) {
		t.Errorf("expected filled_amount %s, got %s", got.Amount, got.FilledAmount)
	}
	if got.FilledAt.IsZero() {
		t.Error("expected filled_at to be set")
	}
}

func TestSettleFillBuyOrder(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	bob, _ := store.CreateUser("bob", "pass")
	store.MintToken("WID", "Widget Works", dec("100"), bob.ID, bob.Username)

	// Alice bids 20 WID at 2 INF each, escrowing 40 INF
	o := &Order{
		ID:              "order-1",
		Type:            OrderTypeBuy,
		TokenSymbol:     "WID",
		PairSymbol:      store.ReferenceSymbol(),
		Amount:          dec("20"),
		Price:           dec("2"),
		TotalValue:      dec("40"),
		CreatorID:       alice.ID,
		CreatorUsername: alice.Username,
		Status:          OrderStatusOpen,
		CreatedAt:       time.Now(),
	}
	if err := store.InsertOrderWithHold(o); err != nil {
		t.Fatalf("InsertOrderWithHold failed: %v", err)
	}

	aliceINF, _ := store.GetBalance(alice.ID, store.ReferenceSymbol())
	if !aliceINF.Locked.Equal(dec("40")) {
		t.Fatalf("expected 40 INF escrowed, got %s", aliceINF.Locked)
	}

	rec, err := store.SettleFill(o.ID, bob.ID, bob.Username)
	if err != nil {
		t.Fatalf("SettleFill failed: %v", err)
	}

	// Tokens flow taker -> maker on a buy
	if rec.FromID != bob.ID || rec.ToID != alice.ID {
		t.Errorf("expected trade from bob to alice, got %s -> %s", rec.FromUsername, rec.ToUsername)
	}

	aliceWID, _ := store.GetBalance(alice.ID, "WID")
	aliceINF, _ = store.GetBalance(alice.ID, store.ReferenceSymbol())
	bobWID, _ := store.GetBalance(bob.ID, "WID")
	bobINF, _ := store.GetBalance(bob.ID, store.ReferenceSymbol())

	if !aliceWID.Available.Equal(dec("20")) {
		t.Errorf("expected alice WID 20, got %s", aliceWID.Available)
	}
	if !aliceINF.Available.Equal(dec("960")) || !aliceINF.Locked.IsZero() {
		t.Errorf("expected alice INF 960/0, got %s/%s", aliceINF.Available, aliceINF.Locked)
	}
	if !bobWID.Available.Equal(dec("80")) {
		t.Errorf("expected bob WID 80, got %s", bobWID.Available)
	}
	if !bobINF.Available.Equal(dec("1040")) {
		t.Errorf("expected bob INF 1040, got %s", bobINF.Available)
	}
}

func TestSettleFillTakerInsufficient(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	bob, _ := store.CreateUser("bob", "pass")
	store.MintToken("WID", "Widget Works", dec("1000"), alice.ID, alice.Username)

	// 500 WID at 3 INF costs 1500, more than bob's grant
	o := openSellOrder(t, store, alice, "order-1", "WID", "500", "3")

	_, err := store.SettleFill(o.ID, bob.ID, bob.Username)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Order stays open, escrow stays in place
	got, _ := store.GetOrder(o.ID)
	if got.Status != OrderStatusOpen {
		t.Errorf("expected order still open, got %s", got.Status)
	}
	aliceWID, _ := store.GetBalance(alice.ID, "WID")
	if !aliceWID.Locked.Equal(dec("500")) {
		t.Errorf("expected escrow intact at 500, got %s", aliceWID.Locked)
	}
	bobINF, _ := store.GetBalance(bob.ID, store.ReferenceSymbol())
	if !bobINF.Available.Equal(dec("1000")) {
		t.Errorf("expected bob's INF untouched at 1000, got %s", bobINF.Available)
	}
}

func TestSettleFillNotOpen(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	bob, _ := store.CreateUser("bob", "pass")
	store.MintToken("WID", "Widget Works", dec("100"), alice.ID, alice.Username)

	o := openSellOrder(t, store, alice, "order-1", "WID", "10", "5")

	if err := store.CancelOrderRelease(o.ID); err != nil {
		t.Fatalf("CancelOrderRelease failed: %v", err)
	}

	_, err := store.SettleFill(o.ID, bob.ID, bob.Username)
	if err != ErrOrderNotOpen {
		t.Errorf("expected ErrOrderNotOpen, got %v", err)
	}
}

func TestSettleFillMissingOrder(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	bob, _ := store.CreateUser("bob", "pass")

	_, err := store.SettleFill("missing", bob.ID, bob.Username)
	if err != ErrOrderNotFound {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCancelOrderRelease(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	store.MintToken("WID", "Widget Works", dec("100"), alice.ID, alice.Username)

	o := openSellOrder(t, store, alice, "order-1", "WID", "10", "5")

	if err := store.CancelOrderRelease(o.ID); err != nil {
		t.Fatalf("CancelOrderRelease failed: %v", err)
	}

	b, _ := store.GetBalance(alice.ID, "WID")
	if !b.Available.Equal(dec("100")) {
		t.Errorf("expected escrow returned, available 100, got %s", b.Available)
	}
	if !b.Locked.IsZero() {
		t.Errorf("expected locked 0, got %s", b.Locked)
	}

	got, _ := store.GetOrder(o.ID)
	if got.Status != OrderStatusCancelled {
		t.Errorf("expected cancelled order, got %s", got.Status)
	}

	// A second cancel is rejected
	if err := store.CancelOrderRelease(o.ID); err != ErrOrderNotOpen {
		t.Errorf("expected ErrOrderNotOpen on double cancel, got %v", err)
	}
}

func TestOpenOrdersFilter(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	store.MintToken("WID", "Widget Works", dec("100"), alice.ID, alice.Username)
	store.MintToken("GAD", "Gadget Labs", dec("100"), alice.ID, alice.Username)

	openSellOrder(t, store, alice, "order-1", "WID", "10", "5")
	openSellOrder(t, store, alice, "order-2", "WID", "5", "6")
	openSellOrder(t, store, alice, "order-3", "GAD", "1", "9")
	store.CancelOrderRelease("order-2")

	wid, err := store.OpenOrders("WID")
	if err != nil {
		t.Fatalf("OpenOrders failed: %v", err)
	}
	if len(wid) != 1 {
		t.Fatalf("expected 1 open WID order, got %d", len(wid))
	}
	if wid[0].ID != "order-1" {
		t.Errorf("expected order-1, got %s", wid[0].ID)
	}

	all, err := store.OpenOrders("")
	if err != nil {
		t.Fatalf("OpenOrders(all) failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 open orders overall, got %d", len(all))
	}
}

func TestOrdersByUser(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	bob, _ := store.CreateUser("bob", "pass")
	store.MintToken("WID", "Widget Works", dec("100"), alice.ID, alice.Username)

	openSellOrder(t, store, alice, "order-1", "WID", "10", "5")
	openSellOrder(t, store, alice, "order-2", "WID", "5", "6")

	mine, err := store.OrdersByUser(alice.ID)
	if err != nil {
		t.Fatalf("OrdersByUser failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 orders for alice, got %d", len(mine))
	}

	theirs, _ := store.OrdersByUser(bob.ID)
	if len(theirs) != 0 {
		t.Errorf("expected no orders for bob, got %d", len(theirs))
	}
}

// ==================== TRANSACTION TESTS ====================

func TestTransactionQueries(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	alice, _ := store.CreateUser("alice", "pass")
	bob, _ := store.CreateUser("bob", "pass")
	store.MintToken("WID", "Widget Works", dec("100"), alice.ID, alice.Username)

	o1 := openSellOrder(t, store, alice, "order-1", "WID", "10", "5")
	o2 := openSellOrder(t, store, alice, "order-2", "WID", "10", "6")
	store.SettleFill(o1.ID, bob.ID, bob.Username)
	store.SettleFill(o2.ID, bob.ID, bob.Username)

	trades, err := store.TradesForToken("WID", 10)
	if err != nil {
		t.Fatalf("TradesForToken failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	// Newest first
	if !trades[0].Price.Equal(dec("6")) {
		t.Errorf("expected most recent trade (price 6) first, got %s", trades[0].Price)
	}

	recent, err := store.RecentTrades(10)
	if err != nil {
		t.Fatalf("RecentTrades failed: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 recent trades, got %d", len(recent))
	}

	// Grants, mint and trades all show up for alice
	all, err := store.TransactionsByUser(alice.ID, 50)
	if err != nil {
		t.Fatalf("TransactionsByUser failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 ledger entries for alice, got %d", len(all))
	}
}

// ==================== MIGRATION TESTS ====================

func TestMigrationStatus(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	applied, pending, err := store.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}

	if len(pending) != 0 {
		t.Errorf("expected no pending migrations, got %d", len(pending))
	}
	if len(applied) != len(migrations) {
		t.Errorf("expected %d applied migrations, got %d", len(migrations), len(applied))
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	// Running Migrate() again should be a no-op
	err := store.Migrate()
	if err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}

	_, pending, err := store.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}

	if len(pending) != 0 {
		t.Errorf("expected no pending migrations after re-run, got %d", len(pending))
	}

	// Verify data is still intact
	_, err = store.CreateUser("test", "pass")
	if err != nil {
		t.Fatalf("CreateUser failed after migration re-run: %v", err)
	}
}

func TestMigrationVersionsAreSequential(t *testing.T) {
	// Verify migrations are in order
	for i, m := range migrations {
		expectedVersion := i + 1
		if m.Version != expectedVersion {
			t.Errorf("migration %d has version %d, expected %d", i, m.Version, expectedVersion)
		}
	}
}
