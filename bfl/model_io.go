package bfl

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

func saveJSON(fileName string, model interface{}) error {
	dest, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "create model file %s", fileName)
	}
	defer dest.Close()

	modelByteRepr, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode model")
	}
	_, err = dest.Write(modelByteRepr)
	return errors.Wrapf(err, "write model file %s", fileName)
}

func loadJSON(fileName string, model interface{}) error {
	source, err := os.Open(fileName)
	if err != nil {
		return errors.Wrapf(err, "open model file %s", fileName)
	}
	defer source.Close()
	return errors.Wrapf(json.NewDecoder(source).Decode(model), "decode model file %s", fileName)
}

//Save writes the fitted classifier to a JSON file.
func (m *DecisionTreeClassifier) Save(fileName string) error {
	return saveJSON(fileName, m)
}

//LoadClassifier reads a classifier back from a JSON file and rebinds its
//criterion and fit hooks from the stored impurity kind.
func LoadClassifier(fileName string) (*DecisionTreeClassifier, error) {
	clf := &DecisionTreeClassifier{DecisionTree: &DecisionTree{}}
	if err := loadJSON(fileName, clf); err != nil {
		return nil, err
	}
	if err := clf.bind(clf.DecisionTree.Depth); err != nil {
		return nil, err
	}
	return clf, nil
}

//Save writes the fitted bagging ensemble to a JSON file.
func (m *BaggingClassifier) Save(fileName string) error {
	return saveJSON(fileName, m)
}

//LoadBaggingClassifier reads a bagging ensemble back from a JSON file.
func LoadBaggingClassifier(fileName string) (*BaggingClassifier, error) {
	model := &BaggingClassifier{DecisionTreeClassifier: &DecisionTreeClassifier{DecisionTree: &DecisionTree{}}}
	if err := loadJSON(fileName, model); err != nil {
		return nil, err
	}
	if err := model.DecisionTreeClassifier.bind(model.DecisionTree.Depth); err != nil {
		return nil, err
	}
	return model, nil
}

//Save writes the fitted random forest to a JSON file.
func (m *RandomForestClassifier) Save(fileName string) error {
	return saveJSON(fileName, m)
}

//LoadRandomForestClassifier reads a random forest back from a JSON file.
func LoadRandomForestClassifier(fileName string) (*RandomForestClassifier, error) {
	model := &RandomForestClassifier{DecisionTreeClassifier: &DecisionTreeClassifier{DecisionTree: &DecisionTree{}}}
	if err := loadJSON(fileName, model); err != nil {
		return nil, err
	}
	if err := model.DecisionTreeClassifier.bind(model.DecisionTree.Depth); err != nil {
		return nil, err
	}
	return model, nil
}
