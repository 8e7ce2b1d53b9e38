package trainer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"golang.org/x/exp/rand"
)

// denseLayer - полносвязный слой с ReLU либо линейной активацией.
// Веса хранятся как [вход][выход]; слой кэширует вход и выход
// последнего прямого прохода для обратного распространения.
type denseLayer struct {
	weights [][]float64
	bias    []float64
	relu    bool

	input  [][]float64
	output [][]float64
}

// newDenseLayer создает слой с инициализацией Ксавье: веса
// равномерны в [-sqrt(6/(in+out)), +sqrt(6/(in+out))], смещения нулевые.
func newDenseLayer(in, out int, relu bool, rng *rand.Rand) *denseLayer {
	limit := math.Sqrt(6.0 / float64(in+out))

	w := make([][]float64, in)
	for i := range w {
		w[i] = make([]float64, out)
		for j := range w[i] {
			w[i][j] = limit * (2*rng.Float64() - 1)
		}
	}

	return &denseLayer{
		weights: w,
		bias:    make([]float64, out),
		relu:    relu,
	}
}

func (l *denseLayer) inSize() int  { return len(l.weights) }
func (l *denseLayer) outSize() int { return len(l.bias) }

// forward считает активации слоя для пакета строк.
func (l *denseLayer) forward(x [][]float64) [][]float64 {
	l.input = x

	out := make([][]float64, len(x))
	for i, row := range x {
		z := make([]float64, l.outSize())
		copy(z, l.bias)
		for k, v := range row {
			if v == 0 {
				continue
			}
			wk := l.weights[k]
			for j := range z {
				z[j] += v * wk[j]
			}
		}
		if l.relu {
			for j := range z {
				if z[j] < 0 {
					z[j] = 0
				}
			}
		}
		out[i] = z
	}

	l.output = out
	return out
}

// backward принимает градиент по выходу, обновляет веса градиентным
// спуском и возвращает градиент по входу.
func (l *denseLayer) backward(grad [][]float64, lr float64) [][]float64 {
	if l.relu {
		for i, row := range grad {
			for j := range row {
				if l.output[i][j] <= 0 {
					row[j] = 0
				}
			}
		}
	}

	gradIn := make([][]float64, len(grad))
	for i := range gradIn {
		gradIn[i] = make([]float64, l.inSize())
	}

	for i, row := range grad {
		in := l.input[i]
		for k := 0; k < l.inSize(); k++ {
			wk := l.weights[k]
			var acc float64
			for j, g := range row {
				acc += g * wk[j]
				wk[j] -= lr * in[k] * g
			}
			gradIn[i][k] = acc
		}
		for j, g := range row {
			l.bias[j] -= lr * g
		}
	}

	return gradIn
}

// Network - простая полносвязная сеть: ReLU на скрытых слоях, линейная
// голова под Q-значения. Никакой внешней математики: числа на срезах,
// обучение - чистый SGD. Для сети такого размера этого достаточно,
// а воспроизводимость полностью в наших руках.
type Network struct {
	layers []*denseLayer
}

// NewNetwork строит сеть вход -> скрытые слои -> выход.
func NewNetwork(inputSize int, hidden []int, outputSize int, rng *rand.Rand) *Network {
	n := &Network{}
	prev := inputSize
	for _, h := range hidden {
		n.layers = append(n.layers, newDenseLayer(prev, h, true, rng))
		prev = h
	}
	n.layers = append(n.layers, newDenseLayer(prev, outputSize, false, rng))
	return n
}

// InputSize возвращает ожидаемую длину вектора признаков.
func (n *Network) InputSize() int { return n.layers[0].inSize() }

// OutputSize возвращает размер выходного слоя (словарь действий).
func (n *Network) OutputSize() int { return n.layers[len(n.layers)-1].outSize() }

// Forward - прямой проход пакета. Кэширует промежуточные активации,
// поэтому сразу после него можно звать Backward.
func (n *Network) Forward(batch [][]float64) [][]float64 {
	x := batch
	for _, l := range n.layers {
		x = l.forward(x)
	}
	return x
}

// Predict - прямой проход одного вектора.
func (n *Network) Predict(x []float64) []float64 {
	return n.Forward([][]float64{x})[0]
}

// Backward распространяет градиент по выходу через все слои.
func (n *Network) Backward(grad [][]float64, lr float64) {
	for i := len(n.layers) - 1; i >= 0; i-- {
		grad = n.layers[i].backward(grad, lr)
	}
}

// CopyFrom глубоко копирует веса другой сети той же формы.
// Используется для синхронизации целевой сети.
func (n *Network) CopyFrom(other *Network) {
	for i, l := range n.layers {
		src := other.layers[i]
		for k := range l.weights {
			copy(l.weights[k], src.weights[k])
		}
		copy(l.bias, src.bias)
	}
}

// layerState - сериализуемые веса одного слоя.
type layerState struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

// Save пишет веса сети в JSON-файл.
func (n *Network) Save(path string) error {
	states := make([]layerState, len(n.layers))
	for i, l := range n.layers {
		states[i] = layerState{Weights: l.weights, Bias: l.bias}
	}

	data, err := json.Marshal(states)
	if err != nil {
		return fmt.Errorf("failed to marshal network weights: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", path, err)
	}
	return nil
}

// Load читает веса из JSON-файла. Форма файла обязана совпадать с
// формой сети: чекпойнт от другой архитектуры или другой версии схемы
// наблюдений отвергается с ошибкой.
func (n *Network) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}

	var states []layerState
	if err := json.Unmarshal(data, &states); err != nil {
		return fmt.Errorf("failed to parse checkpoint %s: %w", path, err)
	}
	if len(states) != len(n.layers) {
		return fmt.Errorf("checkpoint %s has %d layers, network expects %d", path, len(states), len(n.layers))
	}
	for i, s := range states {
		l := n.layers[i]
		if len(s.Weights) != l.inSize() || len(s.Bias) != l.outSize() {
			return fmt.Errorf("checkpoint %s layer %d has shape %dx%d, network expects %dx%d",
				path, i, len(s.Weights), len(s.Bias), l.inSize(), l.outSize())
		}
		for k, row := range s.Weights {
			if len(row) != l.outSize() {
				return fmt.Errorf("checkpoint %s layer %d row %d has %d columns, expected %d",
					path, i, k, len(row), l.outSize())
			}
		}
		l.weights = s.Weights
		l.bias = s.Bias
	}
	return nil
}
