package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

type Config struct {
	DB_HOST            string
	DB_PORT            string
	DB_USER            string
	DB_PASSWORD        string
	DB_NAME            string
	ES_URL             string
	ES_USER            string
	ES_PASSWORD        string
	JWT_SECRET         string
	KAFKA_ADDRESS      string
	MERCHANT_ID        string
	MERCHANT_SECRET    string
	PAYMENT_RETURN_URL string
	PAYMENT_CANCEL_URL string
	PAYMENT_NOTIFY_URL string
	LOG_LEVEL          string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:            os.Getenv("DB_HOST"),
		DB_PORT:            os.Getenv("DB_PORT"),
		DB_USER:            os.Getenv("DB_USER"),
		DB_PASSWORD:        os.Getenv("DB_PASSWORD"),
		DB_NAME:            os.Getenv("DB_NAME"),
		ES_URL:             os.Getenv("ES_URL"),
		ES_USER:            os.Getenv("ES_USER"),
		ES_PASSWORD:        os.Getenv("ES_PASSWORD"),
		JWT_SECRET:         os.Getenv("JWT_SECRET"),
		KAFKA_ADDRESS:      os.Getenv("KAFKA_ADDRESS"),
		MERCHANT_ID:        os.Getenv("PAYHERE_MERCHANT_ID"),
		MERCHANT_SECRET:    os.Getenv("PAYHERE_MERCHANT_SECRET"),
		PAYMENT_RETURN_URL: os.Getenv("PAYHERE_RETURN_URL"),
		PAYMENT_CANCEL_URL: os.Getenv("PAYHERE_CANCEL_URL"),
		PAYMENT_NOTIFY_URL: os.Getenv("PAYHERE_NOTIFY_URL"),
		LOG_LEVEL:          os.Getenv("LOG_LEVEL"),
	}

	return config, nil
}
