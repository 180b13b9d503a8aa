package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"tokenmart/internal/exchange"
	"tokenmart/internal/store"
)

// Seed the database with demo users, tokens, resting orders and a bit
// of trade history so a fresh install has something to look at.
func main() {
	dbPath := flag.String("db", "tokenmart.db", "SQLite database path")
	flag.Parse()

	st, err := store.New(*dbPath, store.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	// Anything beyond the reference token means we already seeded
	tokens, err := st.ListTokens()
	if err != nil {
		log.Fatalf("Failed to list tokens: %v", err)
	}
	if len(tokens) > 1 {
		fmt.Printf("Database already has %d tokens. No need to seed.\n", len(tokens))
		os.Exit(0)
	}

	engine := exchange.New(st)

	alice := ensureUser(st, "alice", "demo1234")
	bob := ensureUser(st, "bob", "demo1234")
	carol := ensureUser(st, "carol", "demo1234")

	// Two demo tokens, each minted by its creator
	mustMint(engine, alice, "WID", "Widget", "500")
	mustMint(engine, bob, "GAD", "Gadget", "1200")

	// Give carol a starting WID position via a direct transfer
	if _, err := engine.Transfer(alice, "carol", "WID", "50", "seed allocation"); err != nil {
		log.Fatalf("Failed to transfer WID to carol: %v", err)
	}

	// Trade history: small orders filled immediately
	fill(engine, carol, mustOrder(engine, alice, "sell", "WID", "10", "5"))
	fill(engine, bob, mustOrder(engine, alice, "sell", "WID", "10", "5.5"))
	fill(engine, alice, mustOrder(engine, bob, "sell", "GAD", "20", "1.5"))

	// Resting depth on both sides of the WID book
	mustOrder(engine, alice, "sell", "WID", "40", "6")
	mustOrder(engine, alice, "sell", "WID", "25", "6.5")
	mustOrder(engine, bob, "buy", "WID", "30", "5.5")
	mustOrder(engine, bob, "buy", "WID", "20", "5")

	// And a thinner GAD book
	mustOrder(engine, bob, "sell", "GAD", "100", "2")
	mustOrder(engine, carol, "buy", "GAD", "50", "1.8")

	open, err := st.OpenOrders("")
	if err != nil {
		log.Fatalf("Failed to count open orders: %v", err)
	}
	trades, err := st.RecentTrades(100)
	if err != nil {
		log.Fatalf("Failed to count trades: %v", err)
	}

	fmt.Println("Seeded demo data:")
	fmt.Println("  users:  alice, bob, carol (password demo1234)")
	fmt.Println("  tokens: WID (Widget), GAD (Gadget)")
	fmt.Printf("  open orders: %d\n", len(open))
	fmt.Printf("  trades:      %d\n", len(trades))
}

// ensureUser creates the demo user or picks up an existing one
func ensureUser(st *store.Store, username, password string) exchange.Identity {
	user, err := st.CreateUser(username, password)
	if errors.Is(err, store.ErrUserExists) {
		user, err = st.GetUserByUsername(username)
	}
	if err != nil {
		log.Fatalf("Failed to ensure user %s: %v", username, err)
	}
	return exchange.Identity{ID: user.ID, Username: user.Username}
}

func mustMint(engine *exchange.Engine, creator exchange.Identity, symbol, name, supply string) {
	if _, err := engine.Mint(creator, symbol, name, supply); err != nil {
		log.Fatalf("Failed to mint %s: %v", symbol, err)
	}
}

func mustOrder(engine *exchange.Engine, actor exchange.Identity, orderType, symbol, amount, price string) string {
	order, err := engine.CreateOrder(actor, exchange.CreateOrderRequest{
		Type:        orderType,
		TokenSymbol: symbol,
		PairSymbol:  "INF",
		Amount:      amount,
		Price:       price,
	})
	if err != nil {
		log.Fatalf("Failed to create %s order for %s: %v", orderType, symbol, err)
	}
	return order.ID
}

func fill(engine *exchange.Engine, taker exchange.Identity, orderID string) {
	if _, _, err := engine.FillOrder(taker, orderID); err != nil {
		log.Fatalf("Failed to fill order %s: %v", orderID, err)
	}
}
