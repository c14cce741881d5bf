// Package creditgate embeds the creditgate ledger in a Go program: principals,
// per-principal credit balances and metered operations, without the HTTP API.
//
//	client, _ := creditgate.New(ctx, creditgate.WithSQLite("credits.db"), creditgate.WithDefaultCredits(5))
//	defer client.Close()
//
//	p, _ := client.Register(ctx, "alice@example.com", "Passw0rd")
//	out, left, err := creditgate.Charge(ctx, client, p, "render", func(ctx context.Context) (Image, error) {
//	    return render(ctx)
//	})
//	if errors.Is(err, creditgate.ErrInsufficientCredits) {
//	    // ask an administrator for a top-up
//	}
//
// Administrative operations need an admin principal, or the operator identity:
//
//	client.Admin(creditgate.Operator()).SetCredits(ctx, p.ID, 100)
package creditgate
