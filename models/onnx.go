package models

import (
	"context"
	"fmt"

	onnxruntime "github.com/yalue/onnxruntime_go"

	kgm3 "github.com/Mineru98/kg-m3-go"
)

var _ kgm3.Backbone = (*ONNXBackbone)(nil)

// ONNXBackbone runs a transformer encoder exported to ONNX and exposes
// its last-layer hidden states. Feature fields are fed to the session as
// int64 tensors under the input names the model declares.
type ONNXBackbone struct {
	session     *onnxruntime.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
	hiddenIdx   int
}

// NewONNXBackbone loads the model at modelPath and prepares a dynamic
// session. The model must declare a last_hidden_state (or hidden_states)
// output of shape [batch_size, seq_len, hidden_size].
func NewONNXBackbone(modelPath string) (*ONNXBackbone, error) {
	// The runtime environment is shared by every session in the process.
	if !onnxruntime.IsInitialized() {
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		_ = options.Destroy()
	}()

	inputs, outputs, err := onnxruntime.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}

	inputNames := make([]string, len(inputs))
	for i, input := range inputs {
		inputNames[i] = input.Name
	}

	outputNames := make([]string, len(outputs))
	hiddenIdx := -1
	for i, output := range outputs {
		outputNames[i] = output.Name
		if output.Name == "last_hidden_state" || output.Name == "hidden_states" {
			hiddenIdx = i
		}
	}
	if hiddenIdx < 0 {
		return nil, fmt.Errorf("model declares no hidden-state output (outputs: %v)", outputNames)
	}

	session, err := onnxruntime.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXBackbone{
		session:     session,
		inputNames:  inputNames,
		outputNames: outputNames,
		hiddenIdx:   hiddenIdx,
	}, nil
}

// InputNames returns the input names the model declares.
func (b *ONNXBackbone) InputNames() []string {
	return b.inputNames
}

// Forward runs the encoder over one already-padded batch.
// Returns hidden states shaped [batch_size, seq_len, hidden_size].
func (b *ONNXBackbone) Forward(ctx context.Context, features kgm3.FeatureBatch) ([][][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputValues := make([]onnxruntime.Value, len(b.inputNames))
	defer func() {
		for _, value := range inputValues {
			if value != nil {
				_ = value.Destroy()
			}
		}
	}()

	for i, name := range b.inputNames {
		rows, ok := features[name]
		if !ok {
			return nil, fmt.Errorf("missing model input %q", name)
		}
		tensor, err := int64Tensor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to create tensor for %q: %w", name, err)
		}
		inputValues[i] = tensor
	}

	// Output values are allocated by Run.
	outputValues := make([]onnxruntime.Value, len(b.outputNames))
	defer func() {
		for _, value := range outputValues {
			if value != nil {
				_ = value.Destroy()
			}
		}
	}()

	if err := b.session.Run(inputValues, outputValues); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	tensor, ok := outputValues[b.hiddenIdx].(*onnxruntime.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output %q is not a float32 tensor", b.outputNames[b.hiddenIdx])
	}
	return reshapeHiddenStates(tensor.GetData(), tensor.GetShape())
}

// int64Tensor flattens a rectangular feature field into a 2D ONNX tensor.
func int64Tensor(rows [][]int64) (*onnxruntime.Tensor[int64], error) {
	batch := len(rows)
	seqLen := 0
	if batch > 0 {
		seqLen = len(rows[0])
	}

	flat := make([]int64, batch*seqLen)
	for i, row := range rows {
		if len(row) != seqLen {
			return nil, fmt.Errorf("row %d has length %d, want %d", i, len(row), seqLen)
		}
		copy(flat[i*seqLen:], row)
	}

	return onnxruntime.NewTensor(onnxruntime.NewShape(int64(batch), int64(seqLen)), flat)
}

// reshapeHiddenStates copies a flat [batch*seq*hidden] buffer into
// per-row matrices. The buffer is owned by the ONNX runtime and freed
// after the call, so rows must not alias it.
func reshapeHiddenStates(flat []float32, shape onnxruntime.Shape) ([][][]float32, error) {
	if len(shape) != 3 {
		return nil, fmt.Errorf("hidden states have %d dimensions, want 3", len(shape))
	}
	batch, seqLen, hidden := int(shape[0]), int(shape[1]), int(shape[2])
	if len(flat) != batch*seqLen*hidden {
		return nil, fmt.Errorf("hidden states hold %d values, want %d", len(flat), batch*seqLen*hidden)
	}

	states := make([][][]float32, batch)
	for i := 0; i < batch; i++ {
		states[i] = make([][]float32, seqLen)
		for j := 0; j < seqLen; j++ {
			row := make([]float32, hidden)
			copy(row, flat[(i*seqLen+j)*hidden:])
			states[i][j] = row
		}
	}
	return states, nil
}

// Close releases the session. The shared runtime environment stays up for
// other sessions in the process.
func (b *ONNXBackbone) Close() error {
	if b.session != nil {
		err := b.session.Destroy()
		b.session = nil
		if err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}
	return nil
}
