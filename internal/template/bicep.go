// Copyright 2025 Platform Engineering Copilot Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package template

import (
	"fmt"
	"strings"
)

// bicepResource renders the Bicep module body for one resource family.
func bicepResource(req *Request, networkMode NetworkMode) (string, error) {
	switch req.ResourceType {
	case ResourceAKS:
		return bicepAKS(req), nil
	case ResourceAppService:
		return bicepAppService(req), nil
	case ResourceFunctionApp:
		return bicepFunctionApp(req), nil
	case ResourceStorage:
		return bicepStorage(req), nil
	case ResourceVM:
		return bicepVM(req), nil
	case ResourceSQL:
		return bicepSQL(req), nil
	case ResourceNetwork:
		return bicepNetwork(req, networkMode), nil
	case ResourceKeyVault:
		return bicepKeyVault(req), nil
	case ResourceContainerRegistry:
		return bicepContainerRegistry(req), nil
	default:
		return "", fmt.Errorf("no bicep generator for resource type %q", req.ResourceType)
	}
}

func bicepHeader(req *Request) string {
	var b strings.Builder
	if req.Description != "" {
		fmt.Fprintf(&b, "// %s\n", req.Description)
	}
	b.WriteString("param location string = resourceGroup().location\n")
	fmt.Fprintf(&b, "param namePrefix string = '%s'\n\n", req.Name)
	return b.String()
}

func bicepAKS(req *Request) string {
	var b strings.Builder
	b.WriteString(bicepHeader(req))
	fmt.Fprintf(&b, "param nodeCount int = %d\n", req.NodeCount)
	b.WriteString("param subnetId string = ''\n\n")
	b.WriteString("resource aks 'Microsoft.ContainerService/managedClusters@2024-01-01' = {\n")
	b.WriteString("  name: '${namePrefix}-aks'\n")
	b.WriteString("  location: location\n")
	if req.Security.ManagedIdentity {
		b.WriteString("  identity: {\n    type: 'SystemAssigned'\n  }\n")
	}
	b.WriteString("  properties: {\n")
	b.WriteString("    dnsPrefix: '${namePrefix}-aks'\n")
	b.WriteString("    agentPoolProfiles: [\n")
	b.WriteString("      {\n")
	b.WriteString("        name: 'system'\n")
	b.WriteString("        count: nodeCount\n")
	b.WriteString("        vmSize: 'Standard_D4s_v5'\n")
	b.WriteString("        mode: 'System'\n")
	b.WriteString("        vnetSubnetID: empty(subnetId) ? null : subnetId\n")
	b.WriteString("      }\n")
	b.WriteString("    ]\n")
	if req.Security.PrivateCluster {
		b.WriteString("    apiServerAccessProfile: {\n      enablePrivateCluster: true\n    }\n")
	}
	if req.Security.AzureRBAC {
		b.WriteString("    aadProfile: {\n      managed: true\n      enableAzureRBAC: true\n    }\n")
		b.WriteString("    disableLocalAccounts: true\n")
	}
	if req.Security.WorkloadIdentity {
		b.WriteString("    securityProfile: {\n      workloadIdentity: {\n        enabled: true\n      }\n    }\n")
		b.WriteString("    oidcIssuerProfile: {\n      enabled: true\n    }\n")
	}
	b.WriteString("    networkProfile: {\n")
	b.WriteString("      networkPlugin: 'azure'\n")
	if req.Security.NetworkPolicy {
		b.WriteString("      networkPolicy: 'azure'\n")
	}
	b.WriteString("    }\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("output clusterName string = aks.name\n")
	b.WriteString("output clusterId string = aks.id\n")
	return b.String()
}

func bicepAppService(req *Request) string {
	var b strings.Builder
	b.WriteString(bicepHeader(req))
	b.WriteString("resource plan 'Microsoft.Web/serverfarms@2023-12-01' = {\n")
	b.WriteString("  name: '${namePrefix}-plan'\n")
	b.WriteString("  location: location\n")
	b.WriteString("  sku: {\n    name: 'P1v3'\n    tier: 'PremiumV3'\n  }\n")
	b.WriteString("}\n\n")
	b.WriteString("resource site 'Microsoft.Web/sites@2023-12-01' = {\n")
	b.WriteString("  name: '${namePrefix}-app'\n")
	b.WriteString("  location: location\n")
	if req.Security.ManagedIdentity {
		b.WriteString("  identity: {\n    type: 'SystemAssigned'\n  }\n")
	}
	b.WriteString("  properties: {\n")
	b.WriteString("    serverFarmId: plan.id\n")
	if req.Security.HTTPSOnly {
		b.WriteString("    httpsOnly: true\n")
	}
	b.WriteString("    siteConfig: {\n")
	fmt.Fprintf(&b, "      minTlsVersion: '%s'\n", req.Security.MinimumTLSVersion)
	b.WriteString("      ftpsState: 'Disabled'\n")
	b.WriteString("    }\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	if req.Security.PrivateEndpoint {
		b.WriteString(bicepPrivateEndpoint("site", "sites"))
	}
	b.WriteString("output siteName string = site.name\n")
	b.WriteString("output siteId string = site.id\n")
	return b.String()
}

func bicepFunctionApp(req *Request) string {
	var b strings.Builder
	b.WriteString(bicepHeader(req))
	b.WriteString("resource plan 'Microsoft.Web/serverfarms@2023-12-01' = {\n")
	b.WriteString("  name: '${namePrefix}-func-plan'\n")
	b.WriteString("  location: location\n")
	b.WriteString("  sku: {\n    name: 'EP1'\n    tier: 'ElasticPremium'\n  }\n")
	b.WriteString("}\n\n")
	b.WriteString("resource func 'Microsoft.Web/sites@2023-12-01' = {\n")
	b.WriteString("  name: '${namePrefix}-func'\n")
	b.WriteString("  location: location\n")
	b.WriteString("  kind: 'functionapp'\n")
	if req.Security.ManagedIdentity {
		b.WriteString("  identity: {\n    type: 'SystemAssigned'\n  }\n")
	}
	b.WriteString("  properties: {\n")
	b.WriteString("    serverFarmId: plan.id\n")
	if req.Security.HTTPSOnly {
		b.WriteString("    httpsOnly: true\n")
	}
	b.WriteString("    siteConfig: {\n")
	fmt.Fprintf(&b, "      minTlsVersion: '%s'\n", req.Security.MinimumTLSVersion)
	b.WriteString("    }\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("output functionAppName string = func.name\n")
	return b.String()
}

func bicepStorage(req *Request) string {
	var b strings.Builder
	b.WriteString(bicepHeader(req))
	b.WriteString("resource storage 'Microsoft.Storage/storageAccounts@2023-05-01' = {\n")
	b.WriteString("  name: replace('${namePrefix}sa', '-', '')\n")
	b.WriteString("  location: location\n")
	b.WriteString("  sku: {\n    name: 'Standard_GRS'\n  }\n")
	b.WriteString("  kind: 'StorageV2'\n")
	if req.Security.ManagedIdentity {
		b.WriteString("  identity: {\n    type: 'SystemAssigned'\n  }\n")
	}
	b.WriteString("  properties: {\n")
	fmt.Fprintf(&b, "    minimumTlsVersion: 'TLS%s'\n", strings.ReplaceAll(req.Security.MinimumTLSVersion, ".", "_"))
	b.WriteString("    allowBlobPublicAccess: false\n")
	b.WriteString("    supportsHttpsTrafficOnly: true\n")
	if req.Security.PrivateEndpoint {
		b.WriteString("    publicNetworkAccess: 'Disabled'\n")
	}
	b.WriteString("    encryption: {\n")
	b.WriteString("      services: {\n        blob: {\n          enabled: true\n        }\n      }\n")
	b.WriteString("      keySource: 'Microsoft.Storage'\n")
	b.WriteString("    }\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	if req.Security.PrivateEndpoint {
		b.WriteString(bicepPrivateEndpoint("storage", "storageAccounts"))
	}
	b.WriteString("output storageAccountName string = storage.name\n")
	b.WriteString("output storageAccountId string = storage.id\n")
	return b.String()
}

func bicepVM(req *Request) string {
	var b strings.Builder
	b.WriteString(bicepHeader(req))
	b.WriteString("param adminUsername string\n")
	b.WriteString("@secure()\nparam adminPublicKey string\n")
	b.WriteString("param subnetId string\n\n")
	b.WriteString("resource nic 'Microsoft.Network/networkInterfaces@2023-11-01' = {\n")
	b.WriteString("  name: '${namePrefix}-nic'\n")
	b.WriteString("  location: location\n")
	b.WriteString("  properties: {\n")
	b.WriteString("    ipConfigurations: [\n")
	b.WriteString("      {\n")
	b.WriteString("        name: 'internal'\n")
	b.WriteString("        properties: {\n")
	b.WriteString("          subnet: {\n            id: subnetId\n          }\n")
	b.WriteString("          privateIPAllocationMethod: 'Dynamic'\n")
	b.WriteString("        }\n")
	b.WriteString("      }\n")
	b.WriteString("    ]\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("resource vm 'Microsoft.Compute/virtualMachines@2024-03-01' = {\n")
	b.WriteString("  name: '${namePrefix}-vm'\n")
	b.WriteString("  location: location\n")
	if req.Security.ManagedIdentity {
		b.WriteString("  identity: {\n    type: 'SystemAssigned'\n  }\n")
	}
	b.WriteString("  properties: {\n")
	b.WriteString("    hardwareProfile: {\n      vmSize: 'Standard_D2s_v5'\n    }\n")
	b.WriteString("    osProfile: {\n")
	b.WriteString("      computerName: '${namePrefix}-vm'\n")
	b.WriteString("      adminUsername: adminUsername\n")
	b.WriteString("      linuxConfiguration: {\n")
	b.WriteString("        disablePasswordAuthentication: true\n")
	b.WriteString("        ssh: {\n")
	b.WriteString("          publicKeys: [\n")
	b.WriteString("            {\n")
	b.WriteString("              path: '/home/${adminUsername}/.ssh/authorized_keys'\n")
	b.WriteString("              keyData: adminPublicKey\n")
	b.WriteString("            }\n")
	b.WriteString("          ]\n")
	b.WriteString("        }\n")
	b.WriteString("      }\n")
	b.WriteString("    }\n")
	b.WriteString("    storageProfile: {\n")
	b.WriteString("      imageReference: {\n")
	b.WriteString("        publisher: 'Canonical'\n")
	b.WriteString("        offer: '0001-com-ubuntu-server-jammy'\n")
	b.WriteString("        sku: '22_04-lts-gen2'\n")
	b.WriteString("        version: 'latest'\n")
	b.WriteString("      }\n")
	b.WriteString("      osDisk: {\n        createOption: 'FromImage'\n      }\n")
	b.WriteString("    }\n")
	b.WriteString("    networkProfile: {\n")
	b.WriteString("      networkInterfaces: [\n        {\n          id: nic.id\n        }\n      ]\n")
	b.WriteString("    }\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("output vmId string = vm.id\n")
	return b.String()
}

func bicepSQL(req *Request) string {
	var b strings.Builder
	b.WriteString(bicepHeader(req))
	b.WriteString("param administratorLogin string\n")
	b.WriteString("@secure()\nparam administratorPassword string\n\n")
	b.WriteString("resource sqlServer 'Microsoft.Sql/servers@2023-08-01-preview' = {\n")
	b.WriteString("  name: '${namePrefix}-sql'\n")
	b.WriteString("  location: location\n")
	if req.Security.ManagedIdentity {
		b.WriteString("  identity: {\n    type: 'SystemAssigned'\n  }\n")
	}
	b.WriteString("  properties: {\n")
	b.WriteString("    administratorLogin: administratorLogin\n")
	b.WriteString("    administratorLoginPassword: administratorPassword\n")
	fmt.Fprintf(&b, "    minimalTlsVersion: '%s'\n", req.Security.MinimumTLSVersion)
	if req.Security.PrivateEndpoint {
		b.WriteString("    publicNetworkAccess: 'Disabled'\n")
	}
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("resource database 'Microsoft.Sql/servers/databases@2023-08-01-preview' = {\n")
	b.WriteString("  parent: sqlServer\n")
	b.WriteString("  name: '${namePrefix}-db'\n")
	b.WriteString("  location: location\n")
	b.WriteString("  sku: {\n    name: 'GP_Gen5_2'\n    tier: 'GeneralPurpose'\n  }\n")
	b.WriteString("}\n\n")
	if req.Security.PrivateEndpoint {
		b.WriteString(bicepPrivateEndpoint("sqlServer", "servers"))
	}
	b.WriteString("output sqlServerName string = sqlServer.name\n")
	b.WriteString("output databaseName string = database.name\n")
	return b.String()
}

// bicepNetwork emits either full resource blocks (create-new mode) or
// read-only existing references (use-existing mode).
func bicepNetwork(req *Request, mode NetworkMode) string {
	var b strings.Builder
	b.WriteString(bicepHeader(req))

	if mode == NetworkModeExisting {
		b.WriteString("param existingVnetName string\n\n")
		b.WriteString("resource vnet 'Microsoft.Network/virtualNetworks@2023-11-01' existing = {\n")
		b.WriteString("  name: existingVnetName\n")
		b.WriteString("}\n\n")
		b.WriteString("resource workloadSubnet 'Microsoft.Network/virtualNetworks/subnets@2023-11-01' existing = {\n")
		b.WriteString("  parent: vnet\n")
		b.WriteString("  name: 'workload'\n")
		b.WriteString("}\n\n")
		b.WriteString("output vnetId string = vnet.id\n")
		b.WriteString("output workloadSubnetId string = workloadSubnet.id\n")
		return b.String()
	}

	b.WriteString("resource nsg 'Microsoft.Network/networkSecurityGroups@2023-11-01' = {\n")
	b.WriteString("  name: '${namePrefix}-nsg'\n")
	b.WriteString("  location: location\n")
	b.WriteString("  properties: {\n")
	b.WriteString("    securityRules: [\n")
	b.WriteString("      {\n")
	b.WriteString("        name: 'DenyAllInbound'\n")
	b.WriteString("        properties: {\n")
	b.WriteString("          priority: 4096\n")
	b.WriteString("          direction: 'Inbound'\n")
	b.WriteString("          access: 'Deny'\n")
	b.WriteString("          protocol: '*'\n")
	b.WriteString("          sourceAddressPrefix: '*'\n")
	b.WriteString("          sourcePortRange: '*'\n")
	b.WriteString("          destinationAddressPrefix: '*'\n")
	b.WriteString("          destinationPortRange: '*'\n")
	b.WriteString("        }\n")
	b.WriteString("      }\n")
	b.WriteString("    ]\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("resource vnet 'Microsoft.Network/virtualNetworks@2023-11-01' = {\n")
	b.WriteString("  name: '${namePrefix}-vnet'\n")
	b.WriteString("  location: location\n")
	b.WriteString("  properties: {\n")
	b.WriteString("    addressSpace: {\n")
	b.WriteString("      addressPrefixes: [\n        '10.0.0.0/16'\n      ]\n")
	b.WriteString("    }\n")
	b.WriteString("    subnets: [\n")
	b.WriteString("      {\n")
	b.WriteString("        name: 'workload'\n")
	b.WriteString("        properties: {\n")
	b.WriteString("          addressPrefix: '10.0.1.0/24'\n")
	b.WriteString("          networkSecurityGroup: {\n            id: nsg.id\n          }\n")
	b.WriteString("        }\n")
	b.WriteString("      }\n")
	b.WriteString("      {\n")
	b.WriteString("        name: 'privatelink'\n")
	b.WriteString("        properties: {\n")
	b.WriteString("          addressPrefix: '10.0.2.0/24'\n")
	b.WriteString("          privateEndpointNetworkPolicies: 'Disabled'\n")
	b.WriteString("        }\n")
	b.WriteString("      }\n")
	b.WriteString("      {\n")
	b.WriteString("        name: 'delegated'\n")
	b.WriteString("        properties: {\n")
	b.WriteString("          addressPrefix: '10.0.3.0/24'\n")
	b.WriteString("          delegations: [\n")
	b.WriteString("            {\n")
	b.WriteString("              name: 'serverfarm-delegation'\n")
	b.WriteString("              properties: {\n")
	b.WriteString("                serviceName: 'Microsoft.Web/serverFarms'\n")
	b.WriteString("              }\n")
	b.WriteString("            }\n")
	b.WriteString("          ]\n")
	b.WriteString("        }\n")
	b.WriteString("      }\n")
	b.WriteString("    ]\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	if req.Security.PrivateEndpoint {
		b.WriteString("resource privateDns 'Microsoft.Network/privateDnsZones@2024-06-01' = {\n")
		b.WriteString("  name: 'privatelink.${environment().suffixes.storage}'\n")
		b.WriteString("  location: 'global'\n")
		b.WriteString("}\n\n")
	}
	b.WriteString("output vnetId string = vnet.id\n")
	b.WriteString("output workloadSubnetId string = vnet.properties.subnets[0].id\n")
	b.WriteString("output privatelinkSubnetId string = vnet.properties.subnets[1].id\n")
	return b.String()
}

func bicepKeyVault(req *Request) string {
	var b strings.Builder
	b.WriteString(bicepHeader(req))
	b.WriteString("resource keyVault 'Microsoft.KeyVault/vaults@2023-07-01' = {\n")
	b.WriteString("  name: '${namePrefix}-kv'\n")
	b.WriteString("  location: location\n")
	b.WriteString("  properties: {\n")
	b.WriteString("    sku: {\n      family: 'A'\n      name: 'standard'\n    }\n")
	b.WriteString("    tenantId: subscription().tenantId\n")
	b.WriteString("    enableRbacAuthorization: true\n")
	b.WriteString("    enableSoftDelete: true\n")
	b.WriteString("    enablePurgeProtection: true\n")
	if req.Security.PrivateEndpoint {
		b.WriteString("    publicNetworkAccess: 'Disabled'\n")
	}
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("output keyVaultName string = keyVault.name\n")
	b.WriteString("output keyVaultId string = keyVault.id\n")
	return b.String()
}

func bicepContainerRegistry(req *Request) string {
	var b strings.Builder
	b.WriteString(bicepHeader(req))
	b.WriteString("resource acr 'Microsoft.ContainerRegistry/registries@2023-11-01-preview' = {\n")
	b.WriteString("  name: replace('${namePrefix}acr', '-', '')\n")
	b.WriteString("  location: location\n")
	b.WriteString("  sku: {\n    name: 'Premium'\n  }\n")
	if req.Security.ManagedIdentity {
		b.WriteString("  identity: {\n    type: 'SystemAssigned'\n  }\n")
	}
	b.WriteString("  properties: {\n")
	b.WriteString("    adminUserEnabled: false\n")
	if req.Security.PrivateEndpoint {
		b.WriteString("    publicNetworkAccess: 'Disabled'\n")
	}
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("output registryName string = acr.name\n")
	b.WriteString("output registryId string = acr.id\n")
	return b.String()
}

// bicepPrivateEndpoint emits a private endpoint attached to the given
// resource symbol.
func bicepPrivateEndpoint(symbol, groupID string) string {
	var b strings.Builder
	b.WriteString("param privateEndpointSubnetId string = ''\n\n")
	fmt.Fprintf(&b, "resource %sPe 'Microsoft.Network/privateEndpoints@2023-11-01' = if (!empty(privateEndpointSubnetId)) {\n", symbol)
	fmt.Fprintf(&b, "  name: '${namePrefix}-%s-pe'\n", symbol)
	b.WriteString("  location: location\n")
	b.WriteString("  properties: {\n")
	b.WriteString("    subnet: {\n      id: privateEndpointSubnetId\n    }\n")
	b.WriteString("    privateLinkServiceConnections: [\n")
	b.WriteString("      {\n")
	fmt.Fprintf(&b, "        name: '%s-connection'\n", symbol)
	b.WriteString("        properties: {\n")
	fmt.Fprintf(&b, "          privateLinkServiceId: %s.id\n", symbol)
	fmt.Fprintf(&b, "          groupIds: [\n            '%s'\n          ]\n", groupID)
	b.WriteString("        }\n")
	b.WriteString("      }\n")
	b.WriteString("    ]\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	return b.String()
}
