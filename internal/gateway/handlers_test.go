package gateway

import (
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     CreateOrderRequest
		wantErr bool
	}{
		{"valid", CreateOrderRequest{TokenIn: "SOL", TokenOut: "USDC", AmountIn: 1.5}, false},
		{"missing tokenIn", CreateOrderRequest{TokenOut: "USDC", AmountIn: 1}, true},
		{"missing tokenOut", CreateOrderRequest{TokenIn: "SOL", AmountIn: 1}, true},
		{"same pair", CreateOrderRequest{TokenIn: "SOL", TokenOut: "SOL", AmountIn: 1}, true},
		{"zero amount", CreateOrderRequest{TokenIn: "SOL", TokenOut: "USDC", AmountIn: 0}, true},
		{"negative amount", CreateOrderRequest{TokenIn: "SOL", TokenOut: "USDC", AmountIn: -3}, true},
		{"amount over cap", CreateOrderRequest{TokenIn: "SOL", TokenOut: "USDC", AmountIn: 2e9}, true},
		{"amount at cap", CreateOrderRequest{TokenIn: "SOL", TokenOut: "USDC", AmountIn: maxAmountIn}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validate(c.req)
			if (err != nil) != c.wantErr {
				t.Errorf("validate(%+v) err = %v, wantErr %v", c.req, err, c.wantErr)
			}
		})
	}
}

func TestWSClient_SendAfterClose(t *testing.T) {
	c := newWSClient(nil) // Send and Close never touch the connection

	if err := c.Send([]byte("a")); err != nil {
		t.Fatalf("Send before close: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if err := c.Send([]byte("b")); err != errSinkClosed {
		t.Errorf("Send after close = %v, want errSinkClosed", err)
	}
}

func TestWSClient_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	c := newWSClient(nil)

	// no pump running, so the buffer fills up
	var err error
	for i := 0; i < cap(c.send)+1; i++ {
		err = c.Send([]byte("x"))
	}
	if err != errSinkFull {
		t.Errorf("overfull Send = %v, want errSinkFull", err)
	}
}
