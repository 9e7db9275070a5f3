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

// terraformResource renders the Terraform module body for one resource
// family.
func terraformResource(req *Request, networkMode NetworkMode) (string, error) {
	switch req.ResourceType {
	case ResourceAKS:
		return terraformAKS(req), nil
	case ResourceAppService:
		return terraformAppService(req), nil
	case ResourceFunctionApp:
		return terraformFunctionApp(req), nil
	case ResourceStorage:
		return terraformStorage(req), nil
	case ResourceVM:
		return terraformVM(req), nil
	case ResourceSQL:
		return terraformSQL(req), nil
	case ResourceNetwork:
		return terraformNetwork(req, networkMode), nil
	case ResourceKeyVault:
		return terraformKeyVault(req), nil
	case ResourceContainerRegistry:
		return terraformContainerRegistry(req), nil
	default:
		return "", fmt.Errorf("no terraform generator for resource type %q", req.ResourceType)
	}
}

func terraformHeader(req *Request) string {
	var b strings.Builder
	if req.Description != "" {
		fmt.Fprintf(&b, "# %s\n", req.Description)
	}
	b.WriteString("variable \"location\" {\n  type    = string\n")
	fmt.Fprintf(&b, "  default = %q\n}\n\n", req.Region)
	b.WriteString("variable \"name_prefix\" {\n  type    = string\n")
	fmt.Fprintf(&b, "  default = %q\n}\n\n", req.Name)
	b.WriteString("variable \"resource_group_name\" {\n  type = string\n}\n\n")
	return b.String()
}

func terraformAKS(req *Request) string {
	var b strings.Builder
	b.WriteString(terraformHeader(req))
	fmt.Fprintf(&b, "variable \"node_count\" {\n  type    = number\n  default = %d\n}\n\n", req.NodeCount)
	b.WriteString("variable \"subnet_id\" {\n  type    = string\n  default = null\n}\n\n")
	b.WriteString("resource \"azurerm_kubernetes_cluster\" \"this\" {\n")
	b.WriteString("  name                = \"${var.name_prefix}-aks\"\n")
	b.WriteString("  location            = var.location\n")
	b.WriteString("  resource_group_name = var.resource_group_name\n")
	b.WriteString("  dns_prefix          = \"${var.name_prefix}-aks\"\n")
	if req.Security.PrivateCluster {
		b.WriteString("  private_cluster_enabled = true\n")
	}
	if req.Security.WorkloadIdentity {
		b.WriteString("  workload_identity_enabled = true\n")
		b.WriteString("  oidc_issuer_enabled       = true\n")
	}
	if req.Security.AzureRBAC {
		b.WriteString("  local_account_disabled = true\n\n")
		b.WriteString("  azure_active_directory_role_based_access_control {\n")
		b.WriteString("    azure_rbac_enabled = true\n")
		b.WriteString("  }\n")
	}
	b.WriteString("\n  default_node_pool {\n")
	b.WriteString("    name           = \"system\"\n")
	b.WriteString("    node_count     = var.node_count\n")
	b.WriteString("    vm_size        = \"Standard_D4s_v5\"\n")
	b.WriteString("    vnet_subnet_id = var.subnet_id\n")
	b.WriteString("  }\n")
	if req.Security.ManagedIdentity {
		b.WriteString("\n  identity {\n    type = \"SystemAssigned\"\n  }\n")
	}
	b.WriteString("\n  network_profile {\n")
	b.WriteString("    network_plugin = \"azure\"\n")
	if req.Security.NetworkPolicy {
		b.WriteString("    network_policy = \"azure\"\n")
	}
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("output \"cluster_name\" {\n  value = azurerm_kubernetes_cluster.this.name\n}\n\n")
	b.WriteString("output \"cluster_id\" {\n  value = azurerm_kubernetes_cluster.this.id\n}\n")
	return b.String()
}

func terraformAppService(req *Request) string {
	var b strings.Builder
	b.WriteString(terraformHeader(req))
	b.WriteString("resource \"azurerm_service_plan\" \"this\" {\n")
	b.WriteString("  name                = \"${var.name_prefix}-plan\"\n")
	b.WriteString("  location            = var.location\n")
	b.WriteString("  resource_group_name = var.resource_group_name\n")
	b.WriteString("  os_type             = \"Linux\"\n")
	b.WriteString("  sku_name            = \"P1v3\"\n")
	b.WriteString("}\n\n")
	b.WriteString("resource \"azurerm_linux_web_app\" \"this\" {\n")
	b.WriteString("  name                = \"${var.name_prefix}-app\"\n")
	b.WriteString("  location            = var.location\n")
	b.WriteString("  resource_group_name = var.resource_group_name\n")
	b.WriteString("  service_plan_id     = azurerm_service_plan.this.id\n")
	if req.Security.HTTPSOnly {
		b.WriteString("  https_only          = true\n")
	}
	if req.Security.ManagedIdentity {
		b.WriteString("\n  identity {\n    type = \"SystemAssigned\"\n  }\n")
	}
	b.WriteString("\n  site_config {\n")
	fmt.Fprintf(&b, "    minimum_tls_version = %q\n", req.Security.MinimumTLSVersion)
	b.WriteString("    ftps_state          = \"Disabled\"\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	if req.Security.PrivateEndpoint {
		b.WriteString(terraformPrivateEndpoint("azurerm_linux_web_app.this.id", "sites"))
	}
	b.WriteString("output \"site_name\" {\n  value = azurerm_linux_web_app.this.name\n}\n")
	return b.String()
}

func terraformFunctionApp(req *Request) string {
	var b strings.Builder
	b.WriteString(terraformHeader(req))
	b.WriteString("variable \"storage_account_name\" {\n  type = string\n}\n\n")
	b.WriteString("variable \"storage_account_access_key\" {\n  type      = string\n  sensitive = true\n}\n\n")
	b.WriteString("resource \"azurerm_service_plan\" \"this\" {\n")
	b.WriteString("  name                = \"${var.name_prefix}-func-plan\"\n")
	b.WriteString("  location            = var.location\n")
	b.WriteString("  resource_group_name = var.resource_group_name\n")
	b.WriteString("  os_type             = \"Linux\"\n")
	b.WriteString("  sku_name            = \"EP1\"\n")
	b.WriteString("}\n\n")
	b.WriteString("resource \"azurerm_linux_function_app\" \"this\" {\n")
	b.WriteString("  name                       = \"${var.name_prefix}-func\"\n")
	b.WriteString("  location                   = var.location\n")
	b.WriteString("  resource_group_name        = var.resource_group_name\n")
	b.WriteString("  service_plan_id            = azurerm_service_plan.this.id\n")
	b.WriteString("  storage_account_name       = var.storage_account_name\n")
	b.WriteString("  storage_account_access_key = var.storage_account_access_key\n")
	if req.Security.HTTPSOnly {
		b.WriteString("  https_only                 = true\n")
	}
	if req.Security.ManagedIdentity {
		b.WriteString("\n  identity {\n    type = \"SystemAssigned\"\n  }\n")
	}
	b.WriteString("\n  site_config {\n")
	fmt.Fprintf(&b, "    minimum_tls_version = %q\n", req.Security.MinimumTLSVersion)
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("output \"function_app_name\" {\n  value = azurerm_linux_function_app.this.name\n}\n")
	return b.String()
}

func terraformStorage(req *Request) string {
	var b strings.Builder
	b.WriteString(terraformHeader(req))
	b.WriteString("resource \"azurerm_storage_account\" \"this\" {\n")
	b.WriteString("  name                     = replace(\"${var.name_prefix}sa\", \"-\", \"\")\n")
	b.WriteString("  location                 = var.location\n")
	b.WriteString("  resource_group_name      = var.resource_group_name\n")
	b.WriteString("  account_tier             = \"Standard\"\n")
	b.WriteString("  account_replication_type = \"GRS\"\n")
	fmt.Fprintf(&b, "  min_tls_version          = \"TLS%s\"\n", strings.ReplaceAll(req.Security.MinimumTLSVersion, ".", "_"))
	b.WriteString("  allow_nested_items_to_be_public = false\n")
	if req.Security.PrivateEndpoint {
		b.WriteString("  public_network_access_enabled   = false\n")
	}
	if req.Security.ManagedIdentity {
		b.WriteString("\n  identity {\n    type = \"SystemAssigned\"\n  }\n")
	}
	b.WriteString("}\n\n")
	if req.Security.PrivateEndpoint {
		b.WriteString(terraformPrivateEndpoint("azurerm_storage_account.this.id", "blob"))
	}
	b.WriteString("output \"storage_account_name\" {\n  value = azurerm_storage_account.this.name\n}\n\n")
	b.WriteString("output \"storage_account_id\" {\n  value = azurerm_storage_account.this.id\n}\n")
	return b.String()
}

func terraformVM(req *Request) string {
	var b strings.Builder
	b.WriteString(terraformHeader(req))
	b.WriteString("variable \"admin_username\" {\n  type = string\n}\n\n")
	b.WriteString("variable \"admin_public_key\" {\n  type      = string\n  sensitive = true\n}\n\n")
	b.WriteString("variable \"subnet_id\" {\n  type = string\n}\n\n")
	b.WriteString("resource \"azurerm_network_interface\" \"this\" {\n")
	b.WriteString("  name                = \"${var.name_prefix}-nic\"\n")
	b.WriteString("  location            = var.location\n")
	b.WriteString("  resource_group_name = var.resource_group_name\n\n")
	b.WriteString("  ip_configuration {\n")
	b.WriteString("    name                          = \"internal\"\n")
	b.WriteString("    subnet_id                     = var.subnet_id\n")
	b.WriteString("    private_ip_address_allocation = \"Dynamic\"\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("resource \"azurerm_linux_virtual_machine\" \"this\" {\n")
	b.WriteString("  name                  = \"${var.name_prefix}-vm\"\n")
	b.WriteString("  location              = var.location\n")
	b.WriteString("  resource_group_name   = var.resource_group_name\n")
	b.WriteString("  size                  = \"Standard_D2s_v5\"\n")
	b.WriteString("  admin_username        = var.admin_username\n")
	b.WriteString("  network_interface_ids = [azurerm_network_interface.this.id]\n")
	if req.Security.ManagedIdentity {
		b.WriteString("\n  identity {\n    type = \"SystemAssigned\"\n  }\n")
	}
	b.WriteString("\n  admin_ssh_key {\n")
	b.WriteString("    username   = var.admin_username\n")
	b.WriteString("    public_key = var.admin_public_key\n")
	b.WriteString("  }\n\n")
	b.WriteString("  os_disk {\n")
	b.WriteString("    caching              = \"ReadWrite\"\n")
	b.WriteString("    storage_account_type = \"Premium_LRS\"\n")
	b.WriteString("  }\n\n")
	b.WriteString("  source_image_reference {\n")
	b.WriteString("    publisher = \"Canonical\"\n")
	b.WriteString("    offer     = \"0001-com-ubuntu-server-jammy\"\n")
	b.WriteString("    sku       = \"22_04-lts-gen2\"\n")
	b.WriteString("    version   = \"latest\"\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("output \"vm_id\" {\n  value = azurerm_linux_virtual_machine.this.id\n}\n")
	return b.String()
}

func terraformSQL(req *Request) string {
	var b strings.Builder
	b.WriteString(terraformHeader(req))
	b.WriteString("variable \"administrator_login\" {\n  type = string\n}\n\n")
	b.WriteString("variable \"administrator_password\" {\n  type      = string\n  sensitive = true\n}\n\n")
	b.WriteString("resource \"azurerm_mssql_server\" \"this\" {\n")
	b.WriteString("  name                          = \"${var.name_prefix}-sql\"\n")
	b.WriteString("  location                      = var.location\n")
	b.WriteString("  resource_group_name           = var.resource_group_name\n")
	b.WriteString("  version                       = \"12.0\"\n")
	b.WriteString("  administrator_login           = var.administrator_login\n")
	b.WriteString("  administrator_login_password  = var.administrator_password\n")
	fmt.Fprintf(&b, "  minimum_tls_version           = %q\n", req.Security.MinimumTLSVersion)
	if req.Security.PrivateEndpoint {
		b.WriteString("  public_network_access_enabled = false\n")
	}
	if req.Security.ManagedIdentity {
		b.WriteString("\n  identity {\n    type = \"SystemAssigned\"\n  }\n")
	}
	b.WriteString("}\n\n")
	b.WriteString("resource \"azurerm_mssql_database\" \"this\" {\n")
	b.WriteString("  name      = \"${var.name_prefix}-db\"\n")
	b.WriteString("  server_id = azurerm_mssql_server.this.id\n")
	b.WriteString("  sku_name  = \"GP_Gen5_2\"\n")
	b.WriteString("}\n\n")
	if req.Security.PrivateEndpoint {
		b.WriteString(terraformPrivateEndpoint("azurerm_mssql_server.this.id", "sqlServer"))
	}
	b.WriteString("output \"sql_server_name\" {\n  value = azurerm_mssql_server.this.name\n}\n")
	return b.String()
}

// terraformNetwork emits either managed network resources (create-new
// mode) or data-source lookups against an existing network.
func terraformNetwork(req *Request, mode NetworkMode) string {
	var b strings.Builder
	b.WriteString(terraformHeader(req))

	if mode == NetworkModeExisting {
		b.WriteString("variable \"existing_vnet_name\" {\n  type = string\n}\n\n")
		b.WriteString("data \"azurerm_virtual_network\" \"this\" {\n")
		b.WriteString("  name                = var.existing_vnet_name\n")
		b.WriteString("  resource_group_name = var.resource_group_name\n")
		b.WriteString("}\n\n")
		b.WriteString("data \"azurerm_subnet\" \"workload\" {\n")
		b.WriteString("  name                 = \"workload\"\n")
		b.WriteString("  virtual_network_name = data.azurerm_virtual_network.this.name\n")
		b.WriteString("  resource_group_name  = var.resource_group_name\n")
		b.WriteString("}\n\n")
		b.WriteString("output \"vnet_id\" {\n  value = data.azurerm_virtual_network.this.id\n}\n\n")
		b.WriteString("output \"workload_subnet_id\" {\n  value = data.azurerm_subnet.workload.id\n}\n")
		return b.String()
	}

	b.WriteString("resource \"azurerm_network_security_group\" \"this\" {\n")
	b.WriteString("  name                = \"${var.name_prefix}-nsg\"\n")
	b.WriteString("  location            = var.location\n")
	b.WriteString("  resource_group_name = var.resource_group_name\n\n")
	b.WriteString("  security_rule {\n")
	b.WriteString("    name                       = \"DenyAllInbound\"\n")
	b.WriteString("    priority                   = 4096\n")
	b.WriteString("    direction                  = \"Inbound\"\n")
	b.WriteString("    access                     = \"Deny\"\n")
	b.WriteString("    protocol                   = \"*\"\n")
	b.WriteString("    source_address_prefix      = \"*\"\n")
	b.WriteString("    source_port_range          = \"*\"\n")
	b.WriteString("    destination_address_prefix = \"*\"\n")
	b.WriteString("    destination_port_range     = \"*\"\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("resource \"azurerm_virtual_network\" \"this\" {\n")
	b.WriteString("  name                = \"${var.name_prefix}-vnet\"\n")
	b.WriteString("  location            = var.location\n")
	b.WriteString("  resource_group_name = var.resource_group_name\n")
	b.WriteString("  address_space       = [\"10.0.0.0/16\"]\n")
	b.WriteString("}\n\n")
	b.WriteString("resource \"azurerm_subnet\" \"workload\" {\n")
	b.WriteString("  name                 = \"workload\"\n")
	b.WriteString("  resource_group_name  = var.resource_group_name\n")
	b.WriteString("  virtual_network_name = azurerm_virtual_network.this.name\n")
	b.WriteString("  address_prefixes     = [\"10.0.1.0/24\"]\n")
	b.WriteString("}\n\n")
	b.WriteString("resource \"azurerm_subnet\" \"privatelink\" {\n")
	b.WriteString("  name                 = \"privatelink\"\n")
	b.WriteString("  resource_group_name  = var.resource_group_name\n")
	b.WriteString("  virtual_network_name = azurerm_virtual_network.this.name\n")
	b.WriteString("  address_prefixes     = [\"10.0.2.0/24\"]\n")
	b.WriteString("}\n\n")
	b.WriteString("resource \"azurerm_subnet\" \"delegated\" {\n")
	b.WriteString("  name                 = \"delegated\"\n")
	b.WriteString("  resource_group_name  = var.resource_group_name\n")
	b.WriteString("  virtual_network_name = azurerm_virtual_network.this.name\n")
	b.WriteString("  address_prefixes     = [\"10.0.3.0/24\"]\n\n")
	b.WriteString("  delegation {\n")
	b.WriteString("    name = \"serverfarm-delegation\"\n\n")
	b.WriteString("    service_delegation {\n")
	b.WriteString("      name = \"Microsoft.Web/serverFarms\"\n")
	b.WriteString("    }\n")
	b.WriteString("  }\n")
	b.WriteString("}\n\n")
	b.WriteString("resource \"azurerm_subnet_network_security_group_association\" \"workload\" {\n")
	b.WriteString("  subnet_id                 = azurerm_subnet.workload.id\n")
	b.WriteString("  network_security_group_id = azurerm_network_security_group.this.id\n")
	b.WriteString("}\n\n")
	if req.Security.PrivateEndpoint {
		b.WriteString("resource \"azurerm_private_dns_zone\" \"blob\" {\n")
		b.WriteString("  name                = \"privatelink.blob.core.usgovcloudapi.net\"\n")
		b.WriteString("  resource_group_name = var.resource_group_name\n")
		b.WriteString("}\n\n")
		b.WriteString("resource \"azurerm_private_dns_zone_virtual_network_link\" \"blob\" {\n")
		b.WriteString("  name                  = \"${var.name_prefix}-blob-link\"\n")
		b.WriteString("  resource_group_name   = var.resource_group_name\n")
		b.WriteString("  private_dns_zone_name = azurerm_private_dns_zone.blob.name\n")
		b.WriteString("  virtual_network_id    = azurerm_virtual_network.this.id\n")
		b.WriteString("}\n\n")
	}
	b.WriteString("output \"vnet_id\" {\n  value = azurerm_virtual_network.this.id\n}\n\n")
	b.WriteString("output \"workload_subnet_id\" {\n  value = azurerm_subnet.workload.id\n}\n\n")
	b.WriteString("output \"privatelink_subnet_id\" {\n  value = azurerm_subnet.privatelink.id\n}\n")
	return b.String()
}

func terraformKeyVault(req *Request) string {
	var b strings.Builder
	b.WriteString(terraformHeader(req))
	b.WriteString("data \"azurerm_client_config\" \"current\" {}\n\n")
	b.WriteString("resource \"azurerm_key_vault\" \"this\" {\n")
	b.WriteString("  name                          = \"${var.name_prefix}-kv\"\n")
	b.WriteString("  location                      = var.location\n")
	b.WriteString("  resource_group_name           = var.resource_group_name\n")
	b.WriteString("  tenant_id                     = data.azurerm_client_config.current.tenant_id\n")
	b.WriteString("  sku_name                      = \"standard\"\n")
	b.WriteString("  enable_rbac_authorization     = true\n")
	b.WriteString("  purge_protection_enabled      = true\n")
	b.WriteString("  soft_delete_retention_days    = 90\n")
	if req.Security.PrivateEndpoint {
		b.WriteString("  public_network_access_enabled = false\n")
	}
	b.WriteString("}\n\n")
	b.WriteString("output \"key_vault_name\" {\n  value = azurerm_key_vault.this.name\n}\n\n")
	b.WriteString("output \"key_vault_id\" {\n  value = azurerm_key_vault.this.id\n}\n")
	return b.String()
}

func terraformContainerRegistry(req *Request) string {
	var b strings.Builder
	b.WriteString(terraformHeader(req))
	b.WriteString("resource \"azurerm_container_registry\" \"this\" {\n")
	b.WriteString("  name                          = replace(\"${var.name_prefix}acr\", \"-\", \"\")\n")
	b.WriteString("  location                      = var.location\n")
	b.WriteString("  resource_group_name           = var.resource_group_name\n")
	b.WriteString("  sku                           = \"Premium\"\n")
	b.WriteString("  admin_enabled                 = false\n")
	if req.Security.PrivateEndpoint {
		b.WriteString("  public_network_access_enabled = false\n")
	}
	if req.Security.ManagedIdentity {
		b.WriteString("\n  identity {\n    type = \"SystemAssigned\"\n  }\n")
	}
	b.WriteString("}\n\n")
	b.WriteString("output \"registry_name\" {\n  value = azurerm_container_registry.this.name\n}\n")
	return b.String()
}

// terraformPrivateEndpoint emits a private endpoint attached to the
// given resource id expression.
func terraformPrivateEndpoint(targetID, subresource string) string {
	var b strings.Builder
	b.WriteString("variable \"private_endpoint_subnet_id\" {\n  type    = string\n  default = null\n}\n\n")
	b.WriteString("resource \"azurerm_private_endpoint\" \"this\" {\n")
	b.WriteString("  count               = var.private_endpoint_subnet_id == null ? 0 : 1\n")
	b.WriteString("  name                = \"${var.name_prefix}-pe\"\n")
	b.WriteString("  location            = var.location\n")
	b.WriteString("  resource_group_name = var.resource_group_name\n")
	b.WriteString("  subnet_id           = var.private_endpoint_subnet_id\n\n")
	b.WriteString("  private_service_connection {\n")
	b.WriteString("    name                           = \"${var.name_prefix}-pe-connection\"\n")
	fmt.Fprintf(&b, "    private_connection_resource_id = %s\n", targetID)
	b.WriteString("    is_manual_connection           = false\n")
	fmt.Fprintf(&b, "    subresource_names              = [%q]\n", subresource)
	b.WriteString("  }\n")
	b.WriteString("}\n")
	return b.String()
}
