package dualnet

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// remoteMethod is the full RPC method name this backend invokes. There is
// no generated client stub for it: the wire definition of the
// remote-inference RPC lives with whatever out-of-process worker serves
// it, so this backend speaks to it directly through grpc.ClientConn's
// untyped Invoke, using structpb.Struct as the request/response message.
// That keeps the dependency on google.golang.org/grpc and
// google.golang.org/protobuf real without fabricating a .proto this repo
// doesn't own.
const remoteMethod = "/dualnet.Remote/Run"

const remoteCallTimeout = 30 * time.Second

// remoteEngine is the TagRemote backend: a thin RPC client dispatching
// full batches to an out-of-process inference worker, grounded on the
// original source's RemoteDualNet.
type remoteEngine struct {
	conn      *grpc.ClientConn
	batchSize int
	model     string
}

func newRemoteEngine(cfg Config, log *zap.SugaredLogger) (Engine, error) {
	addr := cfg.ModelPath
	if addr == "" {
		return nil, fmt.Errorf("dualnet: remote: Config.ModelPath must carry the worker address")
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dualnet: remote: dialing %s: %w", addr, err)
	}

	batchSize := cfg.batchSize()
	if requested := cfg.Opaque["negotiate_batch_size"]; requested != "" {
		// The remote worker is the actual authority on batch size; a real
		// deployment would negotiate it over the RPC itself on connect.
		// Config.BatchSize is what this process asks for until then.
		log.Debugw("remote engine requested batch size", "batchSize", batchSize)
	}

	return &remoteEngine{conn: conn, batchSize: batchSize, model: addr}, nil
}

func (e *remoteEngine) BatchSize() int { return e.batchSize }

func (e *remoteEngine) Run(features []BoardFeatures) Result {
	req, err := structpb.NewStruct(map[string]any{
		"batch_size": float64(len(features)),
		"features":   encodeFeaturesForWire(features),
	})
	if err != nil {
		panic(fmt.Sprintf("dualnet: remote: encoding request: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), remoteCallTimeout)
	defer cancel()

	resp := new(structpb.Struct)
	if err := e.conn.Invoke(ctx, remoteMethod, req, resp); err != nil {
		panic(fmt.Sprintf("dualnet: remote: RPC to %s failed: %v", e.model, err))
	}

	return decodeResultFromWire(resp, len(features), e.model)
}

func (e *remoteEngine) Close() { _ = e.conn.Close() }

func encodeFeaturesForWire(features []BoardFeatures) []any {
	out := make([]any, len(features))
	for i, f := range features {
		row := make([]any, len(f))
		for j, v := range f {
			row[j] = float64(v)
		}
		out[i] = row
	}
	return out
}

// decodeResultFromWire decodes a batch result off the wire. model is set
// from the locally configured worker address, not echoed back by the
// worker: the original RemoteDualNet sets result.model = model_path_
// itself, since MiniGo's remote worker never reports a model string.
func decodeResultFromWire(resp *structpb.Struct, n int, model string) Result {
	policies := make([]Policy, n)
	values := make([]float32, n)

	policyList := resp.Fields["policies"].GetListValue().GetValues()
	for i := 0; i < n && i < len(policyList); i++ {
		row := policyList[i].GetListValue().GetValues()
		for j := 0; j < NumMoves && j < len(row); j++ {
			policies[i][j] = float32(row[j].GetNumberValue())
		}
	}

	valueList := resp.Fields["values"].GetListValue().GetValues()
	for i := 0; i < n && i < len(valueList); i++ {
		values[i] = float32(valueList[i].GetNumberValue())
	}

	return Result{
		Policies: policies,
		Values:   values,
		Model:    model,
	}
}
