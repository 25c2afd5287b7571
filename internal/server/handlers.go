package server

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/FlavioCFOliveira/mlpnet/internal/activations"
	"github.com/FlavioCFOliveira/mlpnet/internal/checkpoint"
	"github.com/FlavioCFOliveira/mlpnet/internal/examples"
	"github.com/FlavioCFOliveira/mlpnet/internal/store"
	"github.com/FlavioCFOliveira/mlpnet/mlpnet"
)

// maxBodyBytes caps request bodies, checkpoint uploads included.
const maxBodyBytes = 8 << 20

type exampleInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Architecture []int  `json:"architecture"`
}

type trainRequest struct {
	Example      string  `json:"example"`
	Epochs       uint32  `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	Seed         uint64  `json:"seed,omitempty"`
	Activation   string  `json:"activation,omitempty"`
}

type trainResponse struct {
	ModelID   string  `json:"model_id"`
	Example   string  `json:"example"`
	Epochs    uint32  `json:"epochs"`
	FinalLoss float64 `json:"final_loss"`
}

type evalRequest struct {
	ModelID string    `json:"model_id"`
	Input   []float64 `json:"input"`
}

type evalResponse struct {
	Output []float64 `json:"output"`
}

type modelInfo struct {
	ModelID         string  `json:"model_id"`
	Example         string  `json:"example"`
	Architecture    []int   `json:"architecture"`
	Activation      string  `json:"activation"`
	Epochs          uint32  `json:"epochs"`
	LearningRate    float64 `json:"learning_rate"`
	TotalParameters int     `json:"total_parameters"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	all := examples.All()
	out := make([]exampleInfo, len(all))
	for i, ex := range all {
		out[i] = exampleInfo{Name: ex.Name, Description: ex.Description, Architecture: ex.Architecture}
	}
	s.respond(w, http.StatusOK, out)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// options validates req and turns it into training options.
func (s *Server) options(req trainRequest) (mlpnet.TrainOptions, error) {
	if req.Epochs == 0 {
		return mlpnet.TrainOptions{}, fmt.Errorf("%w: epochs must be > 0", errBadRequest)
	}
	if req.Epochs > s.maxEpochs {
		return mlpnet.TrainOptions{}, fmt.Errorf("%w: epochs %d exceeds limit %d", errBadRequest, req.Epochs, s.maxEpochs)
	}
	if !(req.LearningRate > 0) || math.IsInf(req.LearningRate, 0) {
		return mlpnet.TrainOptions{}, fmt.Errorf("%w: learning_rate must be > 0", errBadRequest)
	}
	if _, err := examples.Get(req.Example); err != nil {
		return mlpnet.TrainOptions{}, err
	}
	opts := mlpnet.TrainOptions{
		Epochs:       req.Epochs,
		LearningRate: req.LearningRate,
		Seed:         req.Seed,
		Logger:       s.logger,
	}
	if req.Activation != "" {
		act, err := activations.ByName(req.Activation)
		if err != nil {
			return mlpnet.TrainOptions{}, err
		}
		opts.Activation = act
	}
	return opts, nil
}

// checkFinite rejects runs that blew up; their weights cannot be encoded as
// JSON and the model is useless.
func checkFinite(res *mlpnet.Result) error {
	if math.IsNaN(res.FinalLoss) || math.IsInf(res.FinalLoss, 0) {
		return fmt.Errorf("%w: final loss %v, lower learning_rate", errDiverged, res.FinalLoss)
	}
	return nil
}

func (s *Server) keep(res *mlpnet.Result, req trainRequest) trainResponse {
	id := s.models.Put(store.Model{
		Network:      res.Network,
		Example:      res.Example,
		Epochs:       res.Epochs,
		LearningRate: req.LearningRate,
		FinalLoss:    res.FinalLoss,
	})
	s.logger.Printf("model stored id=%s example=%s epochs=%d loss=%.6f", id, res.Example, res.Epochs, res.FinalLoss)
	return trainResponse{ModelID: id, Example: res.Example, Epochs: res.Epochs, FinalLoss: res.FinalLoss}
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	opts, err := s.options(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := mlpnet.Train(req.Example, opts)
	if err == nil {
		err = checkFinite(res)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, http.StatusOK, s.keep(res, req))
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	var req evalRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.models.Get(req.ModelID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := mlpnet.Evaluate(m.Network, req.Input)
	if err != nil {
		s.writeError(w, fmt.Errorf("invalid input dimensions: %w", err))
		return
	}
	s.respond(w, http.StatusOK, evalResponse{Output: out})
}

func info(m store.Model) modelInfo {
	return modelInfo{
		ModelID:         m.ID,
		Example:         m.Example,
		Architecture:    m.Network.Layers(),
		Activation:      m.Network.Activation().Name(),
		Epochs:          m.Epochs,
		LearningRate:    m.LearningRate,
		TotalParameters: m.Network.ParameterCount(),
	}
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	m, err := s.models.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, http.StatusOK, info(m))
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	out := []modelInfo{}
	for _, id := range s.models.IDs() {
		m, err := s.models.Get(id)
		if err != nil {
			// Deleted since IDs was taken.
			continue
		}
		out = append(out, info(m))
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	if err := s.models.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	m, err := s.models.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	ckpt := checkpoint.New(m.Network, checkpoint.Metadata{
		Example:      m.Example,
		Epoch:        m.Epochs,
		TotalEpochs:  m.Epochs,
		LearningRate: m.LearningRate,
	})
	b, err := checkpoint.Marshal(ckpt)
	if err != nil {
		// Stored models always validate; treat this as internal.
		s.writeError(w, fmt.Errorf("encode checkpoint: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", m.ID+".json"))
	w.Write(b)
}

// handleImportModel stores an uploaded checkpoint as a new model.
func (s *Server) handleImportModel(w http.ResponseWriter, r *http.Request) {
	ckpt, err := checkpoint.Decode(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := s.models.Put(store.Model{
		Network:      ckpt.Network,
		Example:      ckpt.Metadata.Example,
		Epochs:       ckpt.Metadata.Epoch,
		LearningRate: ckpt.Network.LearningRate(),
	})
	m, err := s.models.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, info(m))
}
