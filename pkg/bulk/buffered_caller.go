package bulk

import (
	"context"

	"golang.org/x/xerrors"
)

// CallFunc performs one invocation of the endpoint with a batch of inputs.
// A non-nil returned state replaces the state passed to the next invocation.
type CallFunc func(ctx context.Context, endpointState []byte, inputs [][]byte) ([]byte, error)

// BufferedCaller buffers accepted inputs and invokes the endpoint once per inputBatchSize inputs
// and once more for the remainder on AwaitCompletion.
type BufferedCaller struct {
	batchSize     int
	endpointState []byte
	pending       [][]byte
	call          CallFunc
	calls         int
}

var _ Caller = (*BufferedCaller)(nil)

func NewBufferedCaller(inputBatchSize int, endpointState []byte, call CallFunc) *BufferedCaller {
	if inputBatchSize <= 0 {
		inputBatchSize = defaultInputBatchSize
	}
	return &BufferedCaller{
		batchSize:     inputBatchSize,
		endpointState: endpointState,
		pending:       make([][]byte, 0, inputBatchSize),
		call:          call,
		calls:         0,
	}
}

func (c *BufferedCaller) Accept(ctx context.Context, input []byte) error {
	c.pending = append(c.pending, input)
	if len(c.pending) < c.batchSize {
		return nil
	}
	return c.invoke(ctx)
}

func (c *BufferedCaller) AwaitCompletion(ctx context.Context) error {
	if len(c.pending) == 0 {
		return nil
	}
	return c.invoke(ctx)
}

func (c *BufferedCaller) invoke(ctx context.Context) error {
	inputs := c.pending
	c.pending = make([][]byte, 0, c.batchSize)
	newState, err := c.call(ctx, c.endpointState, inputs)
	c.calls++
	if err != nil {
		return xerrors.Errorf("endpoint call #%d with %d inputs failed: %w", c.calls, len(inputs), err)
	}
	if newState != nil {
		c.endpointState = newState
	}
	return nil
}

// EndpointState returns the state which will be passed to the next invocation.
func (c *BufferedCaller) EndpointState() []byte {
	return c.endpointState
}

// Calls returns the number of endpoint invocations made so far.
func (c *BufferedCaller) Calls() int {
	return c.calls
}
