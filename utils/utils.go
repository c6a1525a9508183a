package utils

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/mitchellh/hashstructure"
	"github.com/oklog/ulid"
	"github.com/sirupsen/logrus"
	"sigs.k8s.io/yaml"
)

var (
	ulidMutex = sync.Mutex{}
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func Ternary[T any](cond bool, one, two T) T {
	if cond {
		return one
	}
	return two
}

func MaxTime(v1, v2 time.Time) time.Time {
	if v1.After(v2) {
		return v1
	}

	return v2
}

func MinTime(v1, v2 time.Time) time.Time {
	if v1.Before(v2) {
		return v1
	}

	return v2
}

// Unmarshal serializes and deserializes any from into the object
// return error if occurred
func Unmarshal(from, object any) error {
	b, err := json.Marshal(from)
	if err != nil {
		return fmt.Errorf("error marshaling object: %v", err)
	}
	err = json.Unmarshal(b, object)
	if err != nil {
		return fmt.Errorf("error unmarshalling from object: %v", err)
	}

	return nil
}

// UnmarshalFile reads a JSON or YAML file into dest. YAML is converted to
// JSON first so both formats share one set of struct tags.
func UnmarshalFile(file string, dest any) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %s", file, err)
	}

	ext := strings.ToLower(filepath.Ext(file))
	if ext == ".yaml" || ext == ".yml" {
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return fmt.Errorf("failed to convert %s to json: %s", file, err)
		}
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %s", file, err)
	}

	return nil
}

func ULID() string {
	return genULID(time.Now())
}

func genULID(t time.Time) string {
	ulidMutex.Lock()
	defer ulidMutex.Unlock()

	newUlid, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		logrus.Fatal(err)
	}

	return newUlid.String()
}

// ComputeHash returns a stable hash of any structure, used as the sync
// identity for a configuration.
func ComputeHash(v any) string {
	sum, err := hashstructure.Hash(v, nil)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sum)
}
