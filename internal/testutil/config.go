package testutil

import (
	"os"
	"strconv"
)

const (
	// Test credential environment variables
	TestEbayAppID     = "TEST_EBAY_APP_ID"
	TestEbayAuthToken = "TEST_EBAY_AUTH_TOKEN"
	TestMongoURI      = "TEST_MONGO_URI"

	// Default test values when environment variables are not set
	DefaultTestToken = "test-token"
	DefaultTestKey   = "test-key"
)

// GetTestValue returns a value from an environment variable or a default
func GetTestValue(envVar, defaultValue string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultValue
}

// GetTestEbayAppID returns the test app ID for the marketplace API
func GetTestEbayAppID() string {
	return GetTestValue(TestEbayAppID, DefaultTestKey)
}

// GetTestEbayAuthToken returns the test auth token for the marketplace API
func GetTestEbayAuthToken() string {
	return GetTestValue(TestEbayAuthToken, DefaultTestToken)
}

// GetTestMongoURI returns the Mongo URI for store tests, empty when no
// database is available
func GetTestMongoURI() string {
	return os.Getenv(TestMongoURI)
}

// IsTestMode returns true if we're running in test mode
func IsTestMode() bool {
	testMode := os.Getenv("TEST_MODE")
	if testMode == "" {
		return true // Default to test mode if not specified
	}

	enabled, _ := strconv.ParseBool(testMode)
	return enabled
}
