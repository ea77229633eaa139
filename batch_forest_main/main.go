package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/kmtang/batchforest/bfl"
	"gorgonia.org/tensor"
)

type TrainConfig struct {
	FileNameDataset       string `json:"filename_dataset"`
	NumberOfTarget        int    `json:"number_of_target"`
	Algorithm             string `json:"algorithm"` // tree | bagging | forest
	Depth                 int    `json:"depth"`
	Impurity              string `json:"impurity"`
	NumberOfSubset        int    `json:"number_of_subset"`
	SubsetSize            int    `json:"subset_size"`
	NumberOfChosenFeature int    `json:"number_of_chosen_feature"`
	Seed                  int64  `json:"seed"`
	FileNameModel         string `json:"filename_model"`
	RenderPrefix          string `json:"render_prefix"`
	RenderFigureType      string `json:"render_figure_type"`
	RenderDirectory       string `json:"render_directory"`
}

type PredictConfig struct {
	Algorithm           string `json:"algorithm"`
	FileNameModel       string `json:"filename_model"`
	FileNameSample      string `json:"filename_sample"`
	FileNameLabels      string `json:"filename_labels"`
	FileNameProbability string `json:"filename_probability"`
}

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	bfl.HandleError(err)
	defer func() { bfl.HandleError(file.Close()) }()

	decoder := json.NewDecoder(file)
	bfl.HandleError(decoder.Decode(out))
}

func impurityOf(name string) bfl.Impurity {
	if name == "" {
		return bfl.Entropy
	}
	return bfl.Impurity(name)
}

func train(srcConfig string) {
	var config TrainConfig
	decodeConfig(srcConfig, &config)

	log.Print("try to load dataset <", config.FileNameDataset, ">")
	dataset, err := bfl.ReadNpy(config.FileNameDataset)
	bfl.HandleError(err)

	var classifier interface {
		Fit(*tensor.Dense, int) error
		Save(string) error
	}
	var base *bfl.DecisionTreeClassifier

	switch config.Algorithm {
	case "tree", "":
		model, err := bfl.NewDecisionTreeClassifier(config.Depth, impurityOf(config.Impurity))
		bfl.HandleError(err)
		classifier, base = model, model
	case "bagging":
		model, err := bfl.NewBaggingClassifier(config.Depth, impurityOf(config.Impurity), config.NumberOfSubset, config.SubsetSize, config.Seed)
		bfl.HandleError(err)
		classifier, base = model, model.DecisionTreeClassifier
	case "forest":
		model, err := bfl.NewRandomForestClassifier(config.Depth, impurityOf(config.Impurity), config.NumberOfChosenFeature, config.NumberOfSubset, config.SubsetSize, config.Seed)
		bfl.HandleError(err)
		classifier, base = model, model.DecisionTreeClassifier
	default:
		log.Fatal("unknown algorithm ", config.Algorithm)
	}

	log.Print("fit ", config.Algorithm, " model on dataset of shape ", dataset.Shape())
	bfl.HandleError(classifier.Fit(dataset, config.NumberOfTarget))

	log.Print("save model to <", config.FileNameModel, ">")
	bfl.HandleError(classifier.Save(config.FileNameModel))

	if config.RenderPrefix != "" {
		base.RenderTrees(config.RenderPrefix, config.RenderFigureType, config.RenderDirectory)
	}
}

func predict(srcConfig string) {
	var config PredictConfig
	decodeConfig(srcConfig, &config)

	sample, err := bfl.ReadNpy(config.FileNameSample)
	bfl.HandleError(err)

	var probability bfl.Probability
	var labels *tensor.Dense

	switch config.Algorithm {
	case "tree", "":
		model, err := bfl.LoadClassifier(config.FileNameModel)
		bfl.HandleError(err)
		probability, err = model.PredictWithProbability(sample)
		bfl.HandleError(err)
	case "bagging":
		model, err := bfl.LoadBaggingClassifier(config.FileNameModel)
		bfl.HandleError(err)
		probability, err = model.PredictWithProbability(sample)
		bfl.HandleError(err)
	case "forest":
		model, err := bfl.LoadRandomForestClassifier(config.FileNameModel)
		bfl.HandleError(err)
		probability, err = model.PredictWithProbability(sample)
		bfl.HandleError(err)
	default:
		log.Fatal("unknown algorithm ", config.Algorithm)
	}
	labels = probability.Labels()

	if config.FileNameLabels != "" {
		log.Print("write labels to <", config.FileNameLabels, ">")
		bfl.HandleError(bfl.WriteNpy(config.FileNameLabels, labels))
	}
	if config.FileNameProbability != "" {
		shape := []int(probability.Probability.Shape())
		if len(shape) != 3 || shape[1] != 1 {
			log.Fatal("probability export needs a single-target batchless model, got shape ", shape)
		}
		flat := tensor.New(tensor.WithShape(shape[0], shape[2]), tensor.WithBacking(probability.Probability.Data()))
		log.Print("write probabilities to <", config.FileNameProbability, ">")
		bfl.HandleError(bfl.WriteNpy(config.FileNameProbability, flat))
	}
}

func main() {
	trainConfig := flag.String("train", "", "path to a train configuration json")
	predictConfig := flag.String("predict", "", "path to a predict configuration json")
	flag.Parse()

	switch {
	case *trainConfig != "":
		train(*trainConfig)
	case *predictConfig != "":
		predict(*predictConfig)
	default:
		flag.Usage()
	}
}
